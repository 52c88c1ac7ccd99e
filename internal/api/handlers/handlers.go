package handlers

import (
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/config"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/alerting"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/series"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/websocket"
	"github.com/sirupsen/logrus"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg     *config.Config
	repos   *database.Repositories
	service *alerting.Service
	store   *series.Store
	wsHub   *websocket.Hub
	log     *logrus.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, repos *database.Repositories, service *alerting.Service, store *series.Store, wsHub *websocket.Hub, log *logrus.Logger) *Handlers {
	return &Handlers{
		cfg:     cfg,
		repos:   repos,
		service: service,
		store:   store,
		wsHub:   wsHub,
		log:     log,
	}
}
