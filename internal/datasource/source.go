// Package datasource wraps one remote collection in a small state machine:
//
//	Idle -> Loading -> Ready(data) | Failed(error)
//	Ready | Failed -> Loading on the next refetch
//
// Only the most recently started fetch may update the state. Earlier fetches
// still in flight are cancelled and their results are discarded when they
// arrive.
package datasource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
)

// Status is the tag of a source's state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Fetch outcomes recorded in metrics.
const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeSuperseded = "superseded"
)

// Error describes the last failure of a source.
type Error struct {
	Source  domain.Source `json:"source"`
	Message string        `json:"message"`
}

// State is a copy of a source's state. Data and HasData survive a failure so
// the view can keep rendering what it last had.
type State[T any] struct {
	Status     Status
	Data       T
	HasData    bool
	Err        *Error
	UpdatedAt  time.Time
	Generation uint64
}

// Summary is the payload-free part of a State, used for per-source flags.
type Summary struct {
	Source    domain.Source `json:"source"`
	Status    Status        `json:"status"`
	HasData   bool          `json:"has_data"`
	Error     *Error        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitzero"`
}

// FetchFunc performs one remote read.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// ChangeFunc is called after every state transition, outside the state lock.
// Calls for one source never overlap and arrive in transition order. A
// ChangeFunc must not call Refetch on the same source.
type ChangeFunc func(Summary)

// Source is one independent fetch unit.
type Source[T any] struct {
	name    domain.Source
	logger  *slog.Logger
	metrics *observability.Metrics

	// notifyMu is taken before mu and held until listeners have seen the
	// transition, so notifications cannot overtake each other.
	notifyMu sync.Mutex

	mu       sync.Mutex
	state    State[T]
	cancel   context.CancelFunc
	onChange []ChangeFunc
}

// New creates an idle source.
func New[T any](name domain.Source, logger *slog.Logger, metrics *observability.Metrics) *Source[T] {
	return &Source[T]{
		name:    name,
		logger:  logger.With("source", string(name)),
		metrics: metrics,
		state:   State[T]{Status: StatusIdle},
	}
}

// Name returns the collection this source wraps.
func (s *Source[T]) Name() domain.Source { return s.name }

// OnChange registers fn to be told about every state transition.
func (s *Source[T]) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Refetch starts fetch in the background and moves the source to Loading.
// Any fetch already in flight is superseded: its context is cancelled and
// its result will be ignored. ctx should outlive the caller's request; it
// bounds the fetch, not the call.
//
// The returned channel is closed once this fetch has settled, whether its
// result was applied or discarded.
func (s *Source[T]) Refetch(ctx context.Context, fetch FetchFunc[T]) <-chan struct{} {
	fetchCtx, cancel := context.WithCancel(ctx)

	s.notifyMu.Lock()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.state.Generation++
	gen := s.state.Generation
	s.state.Status = StatusLoading
	summary := s.summaryLocked()
	s.mu.Unlock()

	s.metrics.FetchesStarted.WithLabelValues(string(s.name)).Inc()
	s.notify(summary)
	s.notifyMu.Unlock()

	done := make(chan struct{})
	started := domain.Now()
	go func() {
		defer close(done)
		defer cancel()

		data, err := fetch(fetchCtx)
		s.settle(gen, data, err, domain.Now().Sub(started))
	}()
	return done
}

func (s *Source[T]) settle(gen uint64, data T, err error, elapsed time.Duration) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if gen != s.state.Generation {
		s.mu.Unlock()
		s.metrics.FetchesSettled.WithLabelValues(string(s.name), outcomeSuperseded).Inc()
		s.logger.Debug("discarding superseded fetch result", "generation", gen)
		return
	}

	s.cancel = nil
	s.state.UpdatedAt = domain.Now()
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
		s.state.Status = StatusFailed
		s.state.Err = &Error{Source: s.name, Message: err.Error()}
	} else {
		s.state.Status = StatusReady
		s.state.Data = data
		s.state.HasData = true
		s.state.Err = nil
	}
	summary := s.summaryLocked()
	s.mu.Unlock()

	s.metrics.FetchesSettled.WithLabelValues(string(s.name), outcome).Inc()
	s.metrics.FetchDuration.WithLabelValues(string(s.name)).Observe(elapsed.Seconds())
	if err != nil {
		s.logger.Warn("fetch failed, keeping previous data", "error", err, "has_data", summary.HasData)
	}
	s.notify(summary)
}

// Snapshot returns a copy of the current state.
func (s *Source[T]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Summary returns the current state without its payload.
func (s *Source[T]) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// Close cancels any fetch in flight. A result arriving afterwards is discarded.
func (s *Source[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state.Generation++
}

func (s *Source[T]) summaryLocked() Summary {
	return Summary{
		Source:    s.name,
		Status:    s.state.Status,
		HasData:   s.state.HasData,
		Error:     s.state.Err,
		UpdatedAt: s.state.UpdatedAt,
	}
}

func (s *Source[T]) notify(summary Summary) {
	s.mu.Lock()
	listeners := make([]ChangeFunc, len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(summary)
	}
}
