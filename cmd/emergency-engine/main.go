// cmd/emergency-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/database"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/observability"
	"github.com/dineshratn/sos-app-sub001/internal/engine"
	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/handlers"
	"github.com/dineshratn/sos-app-sub001/internal/identity"
	"github.com/dineshratn/sos-app-sub001/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting emergency engine", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := observability.New("emergency-engine")
	defer obs.Shutdown()

	// --- Infrastructure ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.WithError(err).Error("Failed to open postgres", nil)
		os.Exit(1)
	}
	defer pg.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := pg.Ping(pingCtx); err != nil {
		pingCancel()
		log.WithError(err).Error("Postgres unreachable", nil)
		os.Exit(1)
	}
	pingCancel()

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.WithError(err).Error("Failed to open redis", nil)
		os.Exit(1)
	}
	defer rdb.Close()

	// --- Stores and event bus ---
	emergencies := store.NewEmergencyStore(pg.DB)
	acks := store.NewAcknowledgmentStore(pg.DB)
	escalationStates := store.NewEscalationStore(pg.DB)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, log)
	defer publisher.Close()

	// --- Engine ---
	escalations := engine.NewEscalationMonitor(emergencies, acks, escalationStates, publisher, cfg.Escalation, log, obs)
	countdowns := engine.NewCountdownScheduler(emergencies, publisher, escalations, log, obs)
	latch := engine.NewRedisAckLatch(rdb.Client)
	devices := identity.NewHTTPDeviceGateway(cfg.DeviceGateway, log)

	service := engine.NewService(emergencies, acks, publisher, countdowns, escalations, latch, devices, cfg.Emergency, log)

	// Rebuild timers lost to the last restart, then keep sweeping.
	sweeper := engine.NewSweeper(emergencies, escalationStates, countdowns, escalations, log)
	go sweeper.Run(ctx)

	// --- HTTP server ---
	router := handlers.NewRouter(handlers.RouterDeps{
		Emergency: handlers.NewEmergencyHandler(service, log),
		DB:        pg.DB,
		Redis:     rdb.Client,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"port": cfg.Server.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed", nil)
			cancel()
		}
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed", nil)
	}

	// In-memory timers only; persisted state lets the next start resume them.
	countdowns.Stop()
	escalations.Shutdown()

	log.Info("Emergency engine stopped", nil)
}
