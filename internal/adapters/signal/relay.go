package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/domain"
)

// handleRelay forwards offer/answer/candidate frames to one target. The
// payload is never inspected beyond the routing envelope; sdp and
// candidate stay opaque. A missing or no-longer-active target drops the
// frame silently so negotiation races never error back to the sender.
func (ctl *SignalWSController) handleRelay(id domain.ClientID, kind string, data []byte) {
	var p struct {
		Target    domain.ClientID `json:"target"`
		SDP       json.RawMessage `json:"sdp"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("bad relay payload")
		return
	}

	sender, ok := ctl.Orch.Registry.Get(id)
	if !ok || !sender.Active() || p.Target == "" {
		return
	}

	ctl.Orch.SendToActive(p.Target, struct {
		Type      string          `json:"type"`
		From      domain.ClientID `json:"from"`
		Username  string          `json:"username"`
		SDP       json.RawMessage `json:"sdp,omitempty"`
		Candidate json.RawMessage `json:"candidate,omitempty"`
	}{
		Type:      kind,
		From:      id,
		Username:  sender.Username,
		SDP:       p.SDP,
		Candidate: p.Candidate,
	})
	log.Debug().Str("module", "signal").Str("kind", kind).
		Str("from", string(id)).Str("target", string(p.Target)).Msg("relayed")
}
