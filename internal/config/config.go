package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Infrastructure backend the sessions read from.
	BackendURL             string
	BackendTimeout         time.Duration
	BackendRetryMaxElapsed time.Duration // 0 disables retries
	RainfallCacheSize      int

	// View session lifecycle.
	SessionIdleTimeout   time.Duration
	SessionSweepSchedule string
	SessionRateLimit     float64 // mutations per second per session
	SessionRateBurst     int

	CORSAllowedOrigins []string

	// Optional view-change event stream.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parsePositiveDuration("BACKEND_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	retryMaxElapsed, err := time.ParseDuration(envOrDefault("BACKEND_RETRY_MAX_ELAPSED", "0s"))
	if err != nil || retryMaxElapsed < 0 {
		return nil, errors.New("invalid BACKEND_RETRY_MAX_ELAPSED")
	}

	idleTimeout, err := parsePositiveDuration("SESSION_IDLE_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("RAINFALL_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	burst, err := parsePositiveInt("SESSION_RATE_BURST", 10)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(envOrDefault("SESSION_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid SESSION_RATE_LIMIT")
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BackendURL:             strings.TrimRight(envOrDefault("BACKEND_URL", "http://localhost:3000"), "/"),
		BackendTimeout:         backendTimeout,
		BackendRetryMaxElapsed: retryMaxElapsed,
		RainfallCacheSize:      cacheSize,

		SessionIdleTimeout:   idleTimeout,
		SessionSweepSchedule: envOrDefault("SESSION_SWEEP_SCHEDULE", "@every 1m"),
		SessionRateLimit:     rateLimit,
		SessionRateBurst:     burst,

		CORSAllowedOrigins: splitList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3001")),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "dashboard-view-events"),
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
