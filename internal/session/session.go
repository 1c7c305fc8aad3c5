// Package session composes the date window, category selector, text filter
// and the five data sources into one dashboard view, and keeps a registry of
// live views.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/hydro-dashboard/internal/datasource"
	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/couchcryptid/hydro-dashboard/internal/orchestrator"
)

// ErrClosed is returned by mutators of a session that has been closed. It
// matches ErrNotFound.
var ErrClosed = fmt.Errorf("%w: session closed", ErrNotFound)

// Session is one dashboard view. Mutators are serialized; fetches run in the
// background under the session's own context so they outlive the request
// that triggered them.
type Session struct {
	id      string
	backend domain.Backend
	logger  *slog.Logger
	limiter *rate.Limiter
	emit    func(Event)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	selector   *domain.CategorySelector
	search     string
	window     domain.DateWindow
	lastActive time.Time
	closed     bool

	stations   *datasource.Source[domain.StationSet]
	counts     *datasource.Source[domain.StationCount]
	rainfall   *datasource.Source[[]domain.RainfallSample]
	regions    *datasource.Source[[]domain.RegionAggregate]
	boundaries *datasource.Source[[]domain.RegionBoundary]
	orch       *orchestrator.Orchestrator
}

// Options configures a new Session.
type Options struct {
	ID        string
	Backend   domain.Backend
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	RateLimit rate.Limit
	RateBurst int
	// Emit receives every event of this session. Nil discards them.
	Emit func(Event)
}

// New creates a session with default inputs and mounts it, which starts the
// initial fetches. The returned Pending settles when they do.
func New(opts Options) (*Session, orchestrator.Pending) {
	logger := opts.Logger.With("session_id", opts.ID)
	ctx, cancel := context.WithCancel(context.Background())

	limit := opts.RateLimit
	if limit == 0 {
		limit = rate.Inf
	}

	s := &Session{
		id:         opts.ID,
		backend:    opts.Backend,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, opts.RateBurst),
		emit:       opts.Emit,
		ctx:        ctx,
		cancel:     cancel,
		selector:   domain.NewCategorySelector(),
		lastActive: domain.Now(),
		stations:   datasource.New[domain.StationSet](domain.SourceStations, logger, opts.Metrics),
		counts:     datasource.New[domain.StationCount](domain.SourceStationCounts, logger, opts.Metrics),
		rainfall:   datasource.New[[]domain.RainfallSample](domain.SourceRainfall, logger, opts.Metrics),
		regions:    datasource.New[[]domain.RegionAggregate](domain.SourceRegionalAggregates, logger, opts.Metrics),
		boundaries: datasource.New[[]domain.RegionBoundary](domain.SourceRegionBoundaries, logger, opts.Metrics),
	}
	if s.emit == nil {
		s.emit = func(Event) {}
	}

	s.stations.OnChange(s.sourceChanged)
	s.counts.OnChange(s.sourceChanged)
	s.rainfall.OnChange(s.sourceChanged)
	s.regions.OnChange(s.sourceChanged)
	s.boundaries.OnChange(s.sourceChanged)

	s.orch = orchestrator.New(logger, s.bindings()...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitInputsLocked(EventSessionCreated)
	return s, s.orch.Mount()
}

// bindings is the dependency table. The Refetch closures read the inputs
// directly and are only invoked with s.mu held.
func (s *Session) bindings() []orchestrator.Binding {
	return []orchestrator.Binding{
		{
			Source:    domain.SourceStations,
			DependsOn: []orchestrator.Input{orchestrator.InputCategory},
			Refetch: func() <-chan struct{} {
				category := s.selector.Active()
				return s.stations.Refetch(s.ctx, func(ctx context.Context) (domain.StationSet, error) {
					stations, err := s.backend.FetchStations(ctx, category)
					if err != nil {
						return domain.StationSet{}, transportError(domain.SourceStations, err)
					}
					return domain.StationSet{Category: category, Stations: stations}, nil
				})
			},
		},
		{
			Source:    domain.SourceStationCounts,
			DependsOn: []orchestrator.Input{orchestrator.InputMount},
			Refetch: func() <-chan struct{} {
				return s.counts.Refetch(s.ctx, func(ctx context.Context) (domain.StationCount, error) {
					counts, err := s.backend.FetchStationCounts(ctx)
					return counts, transportError(domain.SourceStationCounts, err)
				})
			},
		},
		{
			Source:    domain.SourceRainfall,
			DependsOn: []orchestrator.Input{orchestrator.InputDateWindow},
			Ready:     func() bool { return s.window.Complete() },
			Refetch: func() <-chan struct{} {
				window := s.window
				return s.rainfall.Refetch(s.ctx, func(ctx context.Context) ([]domain.RainfallSample, error) {
					samples, err := s.backend.FetchRainfall(ctx, window.Start, window.End)
					return samples, transportError(domain.SourceRainfall, err)
				})
			},
		},
		{
			Source:    domain.SourceRegionalAggregates,
			DependsOn: []orchestrator.Input{orchestrator.InputMount},
			Refetch: func() <-chan struct{} {
				return s.regions.Refetch(s.ctx, func(ctx context.Context) ([]domain.RegionAggregate, error) {
					aggregates, err := s.backend.FetchRegionalAggregates(ctx)
					return aggregates, transportError(domain.SourceRegionalAggregates, err)
				})
			},
		},
		{
			Source:    domain.SourceRegionBoundaries,
			DependsOn: []orchestrator.Input{orchestrator.InputMount},
			Refetch: func() <-chan struct{} {
				return s.boundaries.Refetch(s.ctx, func(ctx context.Context) ([]domain.RegionBoundary, error) {
					boundaries, err := s.backend.FetchRegionBoundaries(ctx)
					return boundaries, transportError(domain.SourceRegionBoundaries, err)
				})
			},
		},
	}
}

// transportError tags err with its source unless it already carries one.
func transportError(src domain.Source, err error) error {
	if err == nil {
		return nil
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Source: src, Err: err}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Allow reports whether one more mutation may proceed under the session's
// rate limit.
func (s *Session) Allow() bool { return s.limiter.Allow() }

// Inputs returns the current user inputs.
func (s *Session) Inputs() Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputsLocked()
}

// LastActive returns when the session was created or last mutated.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SelectCategory switches the active category. Choosing the category that is
// already active changes nothing and starts no fetch.
func (s *Session) SelectCategory(c domain.Category) (orchestrator.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	changed, err := s.selector.Select(c)
	if err != nil {
		return nil, err
	}
	s.touchLocked()
	if !changed {
		return nil, nil
	}
	s.emitInputsLocked(EventInputChanged)
	return s.orch.Changed(orchestrator.InputCategory), nil
}

// SetSearchText replaces the search query. Filtering is local, so no fetch
// starts.
func (s *Session) SetSearchText(q string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.touchLocked()
	if q == s.search {
		return nil
	}
	s.search = q
	s.emitInputsLocked(EventInputChanged)
	return nil
}

// SetStartDate parses a YYYY-MM-DD date and moves the window start, clamping
// the end as needed. Rainfall refetches whenever the window is complete.
func (s *Session) SetStartDate(value string) (orchestrator.Pending, error) {
	return s.editWindow(value, (*domain.DateWindow).SetStartString)
}

// SetEndDate is the window-end counterpart of SetStartDate.
func (s *Session) SetEndDate(value string) (orchestrator.Pending, error) {
	return s.editWindow(value, (*domain.DateWindow).SetEndString)
}

func (s *Session) editWindow(value string, edit func(*domain.DateWindow, string) (domain.DateWindow, error)) (orchestrator.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if _, err := edit(&s.window, value); err != nil {
		return nil, err
	}
	s.touchLocked()
	s.emitInputsLocked(EventInputChanged)
	return s.orch.Changed(orchestrator.InputDateWindow), nil
}

// Close cancels every fetch in flight. The session must not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.stations.Close()
	s.counts.Close()
	s.rainfall.Close()
	s.regions.Close()
	s.boundaries.Close()
	s.emitInputsLocked(EventSessionClosed)
}

func (s *Session) touchLocked() {
	s.lastActive = domain.Now()
}

func (s *Session) inputsLocked() Inputs {
	return Inputs{
		Category: s.selector.Active(),
		Search:   s.search,
		Window:   s.window,
	}
}

func (s *Session) emitInputsLocked(t EventType) {
	inputs := s.inputsLocked()
	s.emit(Event{Type: t, SessionID: s.id, At: domain.Now(), Inputs: &inputs})
}

func (s *Session) sourceChanged(summary datasource.Summary) {
	s.emit(Event{Type: EventSourceChanged, SessionID: s.id, At: domain.Now(), Source: &summary})
}
