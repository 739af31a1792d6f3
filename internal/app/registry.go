package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

type sessionEntry struct {
	state  *domain.Session
	conn   core.SignalConnection
	cancel context.CancelFunc
}

// Registry is the authoritative map of connected sessions. Every read and
// mutation of session state and of the shared session-start clock goes
// through its lock; callers receive copies, never live pointers.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ClientID]*sessionEntry

	// sessionStart is zero while no session is active. It is set when the
	// first session joins and cleared when the active count drops to zero.
	sessionStart time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.ClientID]*sessionEntry)}
}

// Add registers a fresh unjoined session for a new connection and assigns
// its id. Ids are never reused while another live session holds them.
func (r *Registry) Add(conn core.SignalConnection, cancel context.CancelFunc) domain.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.ClientID(newShortID())
	for _, taken := r.sessions[id]; taken; _, taken = r.sessions[id] {
		id = domain.ClientID(newShortID())
	}
	r.sessions[id] = &sessionEntry{state: domain.NewSession(id), conn: conn, cancel: cancel}

	log.Info().Str("module", "app.registry").Str("id", string(id)).Msg("session connected")
	return id
}

// Remove deletes the session and recomputes the session-start clock.
// Removing an unknown id is a no-op, so concurrent cleanup paths
// (transport close, explicit leave, unload beacon) can race safely.
func (r *Registry) Remove(id domain.ClientID) (domain.Session, core.SignalConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, nil, false
	}
	delete(r.sessions, id)
	if e.cancel != nil {
		e.cancel()
	}

	active := r.activeCountLocked()
	if active == 0 {
		r.sessionStart = time.Time{}
	}

	log.Info().Str("module", "app.registry").Str("id", string(id)).
		Str("username", e.state.Username).Int("active", active).Msg("session removed")
	return *e.state, e.conn, true
}

// Admit performs the name-uniqueness and capacity checks and activates the
// session in one step, so two concurrent joins cannot both claim the last
// slot or the same name.
func (r *Registry) Admit(id domain.ClientID, username string, maxUsers int) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.state.Active() {
		return time.Time{}, ErrNotPending
	}
	for other, oe := range r.sessions {
		if other != id && oe.state.Active() && domain.SameName(oe.state.Username, username) {
			return time.Time{}, errDuplicateName
		}
	}
	if r.activeCountLocked() >= maxUsers {
		return time.Time{}, errRoomFull
	}

	e.state.Username = username
	if r.sessionStart.IsZero() {
		r.sessionStart = time.Now()
	}
	return r.sessionStart, nil
}

// Get returns a copy of the session state.
func (r *Registry) Get(id domain.ClientID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return *e.state, true
	}
	return domain.Session{}, false
}

// ConnOf returns the transport endpoint for any live session, joined or not.
func (r *Registry) ConnOf(id domain.ClientID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.conn, true
	}
	return nil, false
}

// ActiveConn returns the transport endpoint only if the session is active.
func (r *Registry) ActiveConn(id domain.ClientID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok && e.state.Active() {
		return e.conn, true
	}
	return nil, false
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, e := range r.sessions {
		if e.state.Active() {
			n++
		}
	}
	return n
}

func (r *Registry) CameraCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cameraCountLocked()
}

func (r *Registry) cameraCountLocked() int {
	n := 0
	for _, e := range r.sessions {
		if e.state.CamOn {
			n++
		}
	}
	return n
}

// SessionStart reports the shared room clock; ok is false while nobody is
// active.
func (r *Registry) SessionStart() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionStart, !r.sessionStart.IsZero()
}

// ActiveSnapshot returns copies of all active sessions except exclude.
func (r *Registry) ActiveSnapshot(exclude domain.ClientID) []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Session, 0, len(r.sessions))
	for id, e := range r.sessions {
		if id != exclude && e.state.Active() {
			out = append(out, *e.state)
		}
	}
	return out
}

// ActiveConns returns the recipient set for one broadcast, taken from a
// single consistent view of the registry. Pass an empty exclude to address
// every active session.
func (r *Registry) ActiveConns(exclude domain.ClientID) []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.sessions))
	for id, e := range r.sessions {
		if id != exclude && e.state.Active() {
			out = append(out, e.conn)
		}
	}
	return out
}

// SetCamera flips the camera flag for an active session. Turning the
// camera on fails once maxCameras are already on; existing holders are
// never revoked. Ties between concurrent enables go to whichever message
// takes the lock first.
func (r *Registry) SetCamera(id domain.ClientID, enabled bool, maxCameras int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || !e.state.Active() {
		return ErrNotActive
	}
	if enabled && !e.state.CamOn && r.cameraCountLocked() >= maxCameras {
		return ErrCameraCap
	}
	e.state.CamOn = enabled
	return nil
}

func (r *Registry) SetMic(id domain.ClientID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || !e.state.Active() {
		return ErrNotActive
	}
	e.state.MicOn = enabled
	return nil
}

func (r *Registry) SetScreen(id domain.ClientID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || !e.state.Active() {
		return ErrNotActive
	}
	e.state.ScreenOn = enabled
	return nil
}
