package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/api"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/api/handlers"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/config"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/alerting"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/series"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/metrics"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/websocket"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	repos := database.NewRepositories(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	store := series.NewStore(
		repos.Sample,
		time.Duration(cfg.Alerting.MinSampleIntervalSeconds)*time.Second,
		cfg.Alerting.MaxSamplesPerSeries,
		nil,
		log,
	)

	hub := websocket.NewHub(log)
	go hub.Run()

	dispatchTimeout, err := time.ParseDuration(cfg.Alerting.DispatchTimeout)
	if err != nil {
		log.WithError(err).Fatal("Invalid dispatch timeout")
	}

	sink := websocket.NewNotificationSink(hub, alerting.NewLogSink(log), log)
	resolver := &alerting.StaticResolver{}
	dispatcher := alerting.NewDispatcher(resolver, sink, alerting.ResolveFallbackAdmins, dispatchTimeout, log)

	sm := alerting.NewStateMachine(repos.Rule, repos.History, cfg.Alerting.MaxHistoryPerRule, log)
	ledger := alerting.NewLedger(repos.Ledger, log)

	service := alerting.NewService(repos.Rule, repos.History, store, sm, ledger, dispatcher, nil, collector, log, alerting.ServiceConfig{
		MaxConcurrentEvals: cfg.Alerting.MaxConcurrentEvals,
	})

	scheduler := cron.New(cron.WithSeconds())
	_, err = scheduler.AddFunc(cfg.Retention.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := service.SweepMetricHistory(ctx, cfg.Retention.MetricHistoryDays); err != nil {
			log.WithError(err).Error("Metric history sweep failed")
		}
		if _, err := service.SweepAlertHistory(ctx, cfg.Retention.AlertHistoryDays); err != nil {
			log.WithError(err).Error("Alert history sweep failed")
		}
		if _, err := service.SweepLedger(ctx, cfg.Retention.LedgerDays); err != nil {
			log.WithError(err).Error("Notification ledger sweep failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Invalid retention sweep schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	h := handlers.NewHandlers(cfg, repos, service, store, hub, log)
	router := api.NewRouter(cfg, h, registry, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("address", addr).Info("Starting KPI watch server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced server shutdown")
	}

	log.Info("Server stopped")
}
