// cmd/notification-dispatcher/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dineshratn/sos-app-sub001/internal/common/aws"
	"github.com/dineshratn/sos-app-sub001/internal/common/config"
	"github.com/dineshratn/sos-app-sub001/internal/common/database"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/observability"
	"github.com/dineshratn/sos-app-sub001/internal/directory"
	"github.com/dineshratn/sos-app-sub001/internal/dispatch"
	"github.com/dineshratn/sos-app-sub001/internal/events"
	"github.com/dineshratn/sos-app-sub001/internal/models"
	"github.com/dineshratn/sos-app-sub001/internal/store"
)

const retryLoopInterval = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting notification dispatcher", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := observability.New("notification-dispatcher")
	defer obs.Shutdown()

	// --- Infrastructure ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.WithError(err).Error("Failed to open postgres", nil)
		os.Exit(1)
	}
	defer pg.Close()

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.WithError(err).Error("Failed to open redis", nil)
		os.Exit(1)
	}
	defer rdb.Close()

	// --- Delivery channels ---
	senders, err := buildSenders(ctx, cfg.Notifications)
	if err != nil {
		log.WithError(err).Error("Failed to initialize delivery channels", nil)
		os.Exit(1)
	}

	// --- Dispatcher ---
	jobs := store.NewNotificationStore(pg.DB)
	emergencies := store.NewEmergencyStore(pg.DB)
	contacts := directory.NewHTTPDirectory(cfg.Directory, log)

	dispatcher := dispatch.NewDispatcher(jobs, emergencies, contacts, senders, cfg.Notifications, log)

	// --- Consumers, one per topic, sharing the dedupe store ---
	dedupe := events.NewRedisDeduplicator(rdb.Client)

	emergencyConsumer := events.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, events.TopicEmergencyEvents,
		dedupe, dispatcher.HandleEmergencyEvent, log, obs,
	)
	escalationConsumer := events.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, events.TopicEscalationEvents,
		dedupe, dispatcher.HandleEscalationEvent, log, obs,
	)

	var wg sync.WaitGroup
	for _, consumer := range []*events.Consumer{emergencyConsumer, escalationConsumer} {
		wg.Add(1)
		go func(c *events.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Consumer stopped unexpectedly", nil)
				cancel()
			}
		}(consumer)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.RunRetryLoop(ctx, retryLoopInterval)
	}()

	// --- Health & Metrics ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("Health/Metrics server listening", map[string]interface{}{"addr": addr})
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.WithError(err).Error("Health/Metrics server failed", nil)
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

	wg.Wait()
	if err := emergencyConsumer.Close(); err != nil {
		log.WithError(err).Error("Failed to close emergency consumer", nil)
	}
	if err := escalationConsumer.Close(); err != nil {
		log.WithError(err).Error("Failed to close escalation consumer", nil)
	}

	log.Info("Notification dispatcher stopped", nil)
}

// buildSenders creates one sender per enabled channel. Disabled channels are
// left out of the map so the dispatcher never selects them.
func buildSenders(ctx context.Context, cfg config.NotificationConfig) (map[models.Channel]dispatch.ChannelSender, error) {
	senders := make(map[models.Channel]dispatch.ChannelSender)

	if cfg.Push.Enabled || cfg.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		if cfg.Push.Enabled {
			senders[models.ChannelPush] = dispatch.NewPushSender(snsClient)
		}
		if cfg.SMS.Enabled {
			senders[models.ChannelSMS] = dispatch.NewSMSSender(snsClient, cfg.AWS.DefaultSMSSenderID)
		}
	}

	if cfg.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		senders[models.ChannelEmail] = dispatch.NewEmailSender(sesClient, cfg.Email.FromEmail)
	}

	return senders, nil
}
