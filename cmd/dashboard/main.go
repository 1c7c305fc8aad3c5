package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/hydro-dashboard/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/hydro-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hydro-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-dashboard/internal/adapter/sse"
	"github.com/couchcryptid/hydro-dashboard/internal/config"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, cfg.BackendRetryMaxElapsed, logger, metrics)
	cached := backend.NewCachedBackend(client, cfg.RainfallCacheSize, metrics)
	logger.Info("backend configured", "url", cfg.BackendURL, "timeout", cfg.BackendTimeout, "rainfall_cache_size", cfg.RainfallCacheSize)

	registry := session.NewRegistry(cached, session.RegistryConfig{
		IdleTimeout: cfg.SessionIdleTimeout,
		RateLimit:   rate.Limit(cfg.SessionRateLimit),
		RateBurst:   cfg.SessionRateBurst,
	}, logger, metrics)

	hub := sse.NewHub(logger)
	registry.Subscribe(hub.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional event stream (feature-flagged via KAFKA_ENABLED). It stops
	// after the sessions so their closing events are still published.
	publishCtx, stopPublishing := context.WithCancel(context.Background())
	defer stopPublishing()
	var publisher *kafkaadapter.Publisher
	publisherDone := make(chan struct{})
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		registry.Subscribe(publisher.Listen)
		go func() {
			defer close(publisherDone)
			if err := publisher.Run(publishCtx); err != nil {
				logger.Error("event publisher error", "error", err)
			}
		}()
		logger.Info("kafka event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		close(publisherDone)
		logger.Info("kafka event publishing disabled")
	}

	sweeper, err := registry.StartSweeper(cfg.SessionSweepSchedule)
	if err != nil {
		logger.Error("invalid session sweep schedule", "schedule", cfg.SessionSweepSchedule, "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:           cfg.HTTPAddr,
		Registry:       registry,
		Hub:            hub,
		Ready:          client,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	<-sweeper.Stop().Done()
	// Closing sessions first ends their event streams so Shutdown can drain.
	registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	stopPublishing()
	select {
	case <-publisherDone:
	case <-shutdownCtx.Done():
		logger.Warn("event publisher did not stop in time")
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
