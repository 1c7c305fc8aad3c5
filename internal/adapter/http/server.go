// Package http exposes dashboard sessions over a JSON and SSE API, plus the
// health, readiness and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hydro-dashboard/internal/adapter/sse"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server hosts the dashboard API.
type Server struct {
	httpServer *http.Server
	registry   *session.Registry
	hub        *sse.Hub
	logger     *slog.Logger
	keepalive  time.Duration
}

// Options configures a Server.
type Options struct {
	Addr           string
	Registry       *session.Registry
	Hub            *sse.Hub
	Ready          ReadinessChecker
	AllowedOrigins []string
	Logger         *slog.Logger
	// SSEKeepalive defaults to sse.DefaultKeepalive.
	SSEKeepalive time.Duration
}

// NewServer creates the HTTP server and its routes.
func NewServer(opts Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:        opts.Addr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			// Long enough for ?wait=true; event streams lift it per request.
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry:  opts.Registry,
		hub:       opts.Hub,
		logger:    opts.Logger,
		keepalive: opts.SSEKeepalive,
	}

	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(opts.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(opts.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", handleCategories)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/events", s.handleEvents)
			r.Get("/charts/rainfall.png", s.handleRainfallChart)
			r.Get("/charts/regions.png", s.handleRegionsChart)

			r.Group(func(r chi.Router) {
				r.Use(rateLimitMiddleware)
				r.Put("/category", s.handleSelectCategory)
				r.Put("/search", s.handleSetSearch)
				r.Put("/window/start", s.handleSetWindowStart)
				r.Put("/window/end", s.handleSetWindowEnd)
			})
		})
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
