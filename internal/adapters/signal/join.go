package signal

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/domain"
)

func (ctl *SignalWSController) handleJoin(id domain.ClientID, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Username string `json:"username"`
		// captcha_answer arrives as either a JSON string or a bare number
		// depending on the client; keep it raw and let verification treat
		// anything unparseable as a wrong answer.
		CaptchaID     string          `json:"captcha_id"`
		CaptchaAnswer json.RawMessage `json:"captcha_answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("bad join payload")
		return
	}

	answer := strings.Trim(strings.TrimSpace(string(p.CaptchaAnswer)), `"`)
	res, err := ctl.Orch.Join(id, p.Username, p.CaptchaID, answer)
	if err != nil {
		var adm *app.AdmissionError
		if errors.As(err, &adm) {
			ctl.Orch.SendTo(id, errMsg(adm.Message))
		}
		// Anything else is a precondition failure (double join, stale id)
		// and is dropped without a reply.
		return
	}

	ctl.Orch.SendTo(id, struct {
		Type         string           `json:"type"`
		Users        []domain.Session `json:"users"`
		You          domain.ClientID  `json:"you"`
		SessionStart int64            `json:"session_start"`
		MaxCameras   int              `json:"max_cameras"`
	}{
		Type:         "users",
		Users:        res.Users,
		You:          res.You,
		SessionStart: res.SessionStart,
		MaxCameras:   res.MaxCameras,
	})

	ctl.Orch.BroadcastOthers(id, struct {
		Type     string          `json:"type"`
		ID       domain.ClientID `json:"id"`
		Username string          `json:"username"`
	}{
		Type:     "user_joined",
		ID:       id,
		Username: res.Username,
	})
}
