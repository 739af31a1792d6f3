package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/domain"
)

// handleStatus mutates one device flag and confirms the new state to every
// active session including the sender, so the sender's UI reflects
// server-confirmed state rather than its optimistic local one.
func (ctl *SignalWSController) handleStatus(id domain.ClientID, kind string, data []byte) {
	var p struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("bad status payload")
		return
	}

	// Field defaults mirror a fresh session: mic on, everything else off.
	enabled := kind == "mic_status"
	if p.Enabled != nil {
		enabled = *p.Enabled
	}

	var err error
	switch kind {
	case "camera_status":
		err = ctl.Orch.SetCameraStatus(id, enabled)
	case "mic_status":
		err = ctl.Orch.SetMicStatus(id, enabled)
	case "screen_status":
		err = ctl.Orch.SetScreenStatus(id, enabled)
	}
	if errors.Is(err, app.ErrCameraCap) {
		ctl.Orch.SendTo(id, errMsg(fmt.Sprintf("Maximum cameras (%d) reached", ctl.Orch.MaxCameras)))
		return
	}
	if err != nil {
		// Pending or vanished sender: drop.
		return
	}

	ctl.Orch.BroadcastActive(struct {
		Type    string          `json:"type"`
		ID      domain.ClientID `json:"id"`
		Enabled bool            `json:"enabled"`
	}{
		Type:    kind,
		ID:      id,
		Enabled: enabled,
	})
}
