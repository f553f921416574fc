package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/middleware"
	"github.com/lalith-99/chatline/internal/realtime"
	"go.uber.org/zap"
)

type WSHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewWSHandler(hub *realtime.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Serve handles GET /v1/ws. The upgrade writes its own error response when
// the handshake is bad, so a failure here is only logged.
func (h *WSHandler) Serve(c *gin.Context) {
	caller := middleware.GetCaller(c)
	if err := h.hub.Serve(c.Writer, c.Request, caller.ID); err != nil {
		h.logger.Debug("websocket upgrade failed",
			zap.String("user_id", caller.ID.String()),
			zap.Error(err),
		)
	}
}
