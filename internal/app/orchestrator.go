package app

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// Orchestrator ties the registry and the captcha store together and owns
// the state operations behind the signal protocol. Adapters decode frames
// and call in here; all shared state lives behind the registry lock.
type Orchestrator struct {
	Registry   *Registry
	Captchas   *CaptchaStore
	MaxUsers   int
	MaxCameras int
}

// JoinResult is what a freshly admitted session needs to render the room.
type JoinResult struct {
	You          domain.ClientID
	Username     string
	Users        []domain.Session
	SessionStart int64
	MaxCameras   int
}

// Join runs the admission checks in order, short-circuiting on the first
// failure: captcha, name syntax, name uniqueness, capacity. On success the
// session becomes active and visible to others.
func (o *Orchestrator) Join(id domain.ClientID, username, captchaID, captchaAnswer string) (*JoinResult, error) {
	if !o.Captchas.Verify(captchaID, captchaAnswer) {
		return nil, errInvalidCaptcha
	}
	username = strings.TrimSpace(username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, errInvalidUsername
	}
	start, err := o.Registry.Admit(id, username, o.MaxUsers)
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", "app.orchestrator").Str("id", string(id)).Str("username", username).Msg("joined")
	return &JoinResult{
		You:          id,
		Username:     username,
		Users:        o.Registry.ActiveSnapshot(id),
		SessionStart: start.Unix(),
		MaxCameras:   o.MaxCameras,
	}, nil
}

// SetCameraStatus flips the sender's camera flag, enforcing the camera cap
// at enable time only.
func (o *Orchestrator) SetCameraStatus(id domain.ClientID, enabled bool) error {
	return o.Registry.SetCamera(id, enabled, o.MaxCameras)
}

func (o *Orchestrator) SetMicStatus(id domain.ClientID, enabled bool) error {
	return o.Registry.SetMic(id, enabled)
}

func (o *Orchestrator) SetScreenStatus(id domain.ClientID, enabled bool) error {
	return o.Registry.SetScreen(id, enabled)
}

// Disconnect removes the session and, if it had joined, announces the
// departure to everyone still active. It is the single cleanup path shared
// by transport close, the explicit leave message and the unload beacon;
// repeated calls for the same id are no-ops.
func (o *Orchestrator) Disconnect(id domain.ClientID) {
	state, conn, ok := o.Registry.Remove(id)
	if !ok {
		return
	}
	if conn != nil {
		conn.Close()
	}
	if state.Active() {
		o.BroadcastActive(struct {
			Type string          `json:"type"`
			ID   domain.ClientID `json:"id"`
		}{Type: "user_left", ID: id})
	}
}

// SendTo delivers v to one session, joined or not. Used for direct replies
// such as snapshots and error messages.
func (o *Orchestrator) SendTo(id domain.ClientID, v any) {
	if conn, ok := o.Registry.ConnOf(id); ok {
		trySendJSON(conn, v)
	}
}

// SendToActive delivers v to the target only if it is an active session;
// anything else is silently dropped, as relay targets may disconnect at
// any time.
func (o *Orchestrator) SendToActive(id domain.ClientID, v any) {
	if conn, ok := o.Registry.ActiveConn(id); ok {
		trySendJSON(conn, v)
	}
}

// BroadcastActive fans v out to every active session. The recipient set is
// one consistent registry snapshot per call; a failed send to one
// recipient never aborts delivery to the rest.
func (o *Orchestrator) BroadcastActive(v any) {
	o.fanOut(o.Registry.ActiveConns(""), v)
}

// BroadcastOthers fans v out to every active session except the sender.
func (o *Orchestrator) BroadcastOthers(sender domain.ClientID, v any) {
	o.fanOut(o.Registry.ActiveConns(sender), v)
}

func (o *Orchestrator) fanOut(conns []core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("fanout marshal")
		return
	}
	sent := 0
	for _, conn := range conns {
		// Send failures are the recipient's problem: its own read loop
		// will notice the broken transport and run cleanup.
		if err := conn.TrySend(core.Frame(b)); err == nil {
			sent++
		}
	}
	log.Debug().Str("module", "app.orchestrator").Int("sent_to", sent).Int("of", len(conns)).Msg("fanout")
}

func trySendJSON(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("send marshal")
		return
	}
	_ = conn.TrySend(core.Frame(b))
}
