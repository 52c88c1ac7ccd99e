package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/utils"
)

var startTime = time.Now()

// Health returns service liveness plus websocket hub statistics
func (h *Handlers) Health(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(startTime).String(),
		"websocket": h.wsHub.GetStats(),
	})
}

// NotFound handles unmatched routes
func (h *Handlers) NotFound(c *gin.Context) {
	utils.SendError(c, http.StatusNotFound, "Route not found")
}
