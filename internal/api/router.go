package api

import (
	"github.com/gin-gonic/gin"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/api/handlers"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/api/middleware"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine with all routes and middleware
func NewRouter(cfg *config.Config, h *handlers.Handlers, registry *prometheus.Registry, logger *logrus.Logger) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	router.GET("/health", h.Health)
	router.GET("/ws", h.WebSocketHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		rules := api.Group("/alerts/rules")
		{
			rules.POST("", h.CreateAlertRule)
			rules.GET("", h.GetAlertRules)
			rules.GET("/:id", h.GetAlertRule)
			rules.PUT("/:id", h.UpdateAlertRule)
			rules.DELETE("/:id", h.DeleteAlertRule)
			rules.GET("/:id/history", h.GetAlertHistory)
		}

		api.POST("/alerts/evaluate", h.EvaluateAlerts)
		api.GET("/alerts/summary", h.GetStatusSummary)

		samples := api.Group("/samples")
		{
			samples.POST("", h.RecordSample)
			samples.GET("/history", h.GetSampleHistory)
			samples.GET("/trend", h.GetSampleTrend)
			samples.GET("/statistics", h.GetSampleStatistics)
		}

		api.GET("/ws/stats", h.GetWebSocketStats)
	}

	router.NoRoute(h.NotFound)

	return router
}
