package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/websocket"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/utils"
)

// WebSocketHandler upgrades the connection and attaches it to the hub
func (h *Handlers) WebSocketHandler(c *gin.Context) {
	websocket.ServeWS(h.wsHub, c.Writer, c.Request, h.log)
}

// GetWebSocketStats returns current hub statistics
func (h *Handlers) GetWebSocketStats(c *gin.Context) {
	utils.SendSuccess(c, h.wsHub.GetStats())
}
