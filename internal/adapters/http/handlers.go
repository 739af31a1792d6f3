package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/domain"
)

type Handlers struct {
	Orch *app.Orchestrator
	Cfg  *config.Config
}

type LeaveRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

func (h *Handlers) GetCaptcha(c *gin.Context) {
	id, question := h.Orch.Captchas.Issue()
	c.JSON(http.StatusOK, gin.H{"id": id, "question": question})
}

func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Cfg.ClientConfig())
}

func (h *Handlers) GetUserCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.Orch.Registry.ActiveCount()})
}

// Leave is the page-unload beacon. It runs the same idempotent cleanup as
// a websocket close, so a session that fires both is neither leaked nor
// announced twice.
func (h *Handlers) Leave(c *gin.Context) {
	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	log.Info().Str("module", "adapters.http").Str("id", req.ClientID).Msg("leave via beacon")
	h.Orch.Disconnect(domain.ClientID(req.ClientID))
	c.Status(http.StatusNoContent)
}
