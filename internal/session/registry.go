package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/couchcryptid/hydro-dashboard/internal/orchestrator"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// RegistryConfig holds the settings shared by every session of a registry.
type RegistryConfig struct {
	IdleTimeout time.Duration
	RateLimit   rate.Limit
	RateBurst   int
}

// Registry owns the live sessions of the service.
type Registry struct {
	backend domain.Backend
	logger  *slog.Logger
	metrics *observability.Metrics
	cfg     RegistryConfig

	mu        sync.RWMutex
	sessions  map[string]*Session
	listeners []Listener
}

// NewRegistry creates an empty registry.
func NewRegistry(backend domain.Backend, cfg RegistryConfig, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		backend:  backend,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Subscribe adds a listener for events from every current and future session.
func (r *Registry) Subscribe(fn Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Create mounts a new session under a fresh id.
func (r *Registry) Create() (*Session, orchestrator.Pending) {
	id := uuid.NewString()
	s, pending := New(Options{
		ID:        id,
		Backend:   r.backend,
		Logger:    r.logger,
		Metrics:   r.metrics,
		RateLimit: r.cfg.RateLimit,
		RateBurst: r.cfg.RateBurst,
		Emit:      r.broadcast,
	})

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.metrics.ActiveSessions.Inc()
	r.logger.Info("session created", "session_id", id)
	return s, pending
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and removes a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	r.metrics.ActiveSessions.Dec()
	r.logger.Info("session closed", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle closes every session idle for longer than the configured timeout
// and returns how many it removed.
func (r *Registry) SweepIdle() int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := domain.Now().Add(-r.cfg.IdleTimeout)

	// Session locks are never taken under r.mu: mutators broadcast while
	// holding their own lock.
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	var expired []*Session
	for _, s := range candidates {
		if !s.LastActive().Before(cutoff) {
			continue
		}
		r.mu.Lock()
		if r.sessions[s.ID()] == s {
			delete(r.sessions, s.ID())
			expired = append(expired, s)
		}
		r.mu.Unlock()
	}

	for _, s := range expired {
		s.Close()
		r.metrics.ActiveSessions.Dec()
		r.metrics.SessionsExpired.Inc()
		r.logger.Info("session expired", "session_id", s.ID())
	}
	return len(expired)
}

// StartSweeper runs SweepIdle on a cron schedule such as "@every 1m". Stop
// the returned scheduler on shutdown.
func (r *Registry) StartSweeper(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := r.SweepIdle(); n > 0 {
			r.logger.Debug("idle sweep finished", "expired", n, "active", r.Len())
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		r.metrics.ActiveSessions.Dec()
	}
}

func (r *Registry) broadcast(e Event) {
	r.mu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}
