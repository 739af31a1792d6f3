package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/domain"
)

const writeWait = 5 * time.Second

// pongWait is how long a silent peer survives: two missed pings and the
// read deadline fires, which tears the connection down through the normal
// cleanup path.
func (ctl *SignalWSController) pongWait() time.Duration {
	return 2 * ctl.Cfg.PingPeriod
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, id domain.ClientID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("id", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("id", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("readPump read error")
				return
			}
			ctl.HandleFrame(id, data)
		}
	}
}

// HandleFrame is the router's single entry point: it reads the type tag
// and dispatches. Malformed frames and unknown types are dropped without
// touching the connection.
func (ctl *SignalWSController) HandleFrame(id domain.ClientID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(id, data)
	case "offer", "answer", "candidate":
		ctl.handleRelay(id, env.Type, data)
	case "camera_status", "mic_status", "screen_status":
		ctl.handleStatus(id, env.Type, data)
	case "leave":
		log.Info().Str("module", "signal").Str("id", string(id)).Msg("explicit leave")
		ctl.Orch.Disconnect(id)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errMsg(message string) errorMessage {
	return errorMessage{Type: "error", Message: message}
}
