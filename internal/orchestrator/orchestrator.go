// Package orchestrator decides which data sources refetch when a view input
// changes. The dependency edges are a table of Bindings rather than code, so
// adding a source means adding a row.
package orchestrator

import (
	"context"
	"log/slog"
	"slices"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
)

// Input is a view input that sources may depend on.
type Input string

const (
	// InputMount fires once when the view is created.
	InputMount      Input = "mount"
	InputCategory   Input = "category"
	InputDateWindow Input = "date_window"
)

// Binding ties one source to the inputs it depends on.
type Binding struct {
	Source    domain.Source
	DependsOn []Input
	// Ready gates the refetch. Nil means always ready.
	Ready func() bool
	// Refetch starts a fetch with the current inputs and returns a channel
	// closed when it settles.
	Refetch func() <-chan struct{}
}

// Orchestrator fans input changes out to the sources that depend on them.
type Orchestrator struct {
	bindings []Binding
	logger   *slog.Logger
}

// New creates an Orchestrator over the given dependency table.
func New(logger *slog.Logger, bindings ...Binding) *Orchestrator {
	return &Orchestrator{bindings: bindings, logger: logger}
}

// Mount fires every source whose gate passes, whatever its dependencies.
func (o *Orchestrator) Mount() Pending {
	return o.fire(InputMount, func(Binding) bool { return true })
}

// Changed fires exactly the sources that depend on in and whose gate passes.
func (o *Orchestrator) Changed(in Input) Pending {
	return o.fire(in, func(b Binding) bool { return slices.Contains(b.DependsOn, in) })
}

// Dependents lists the sources that depend on in, in table order.
func (o *Orchestrator) Dependents(in Input) []domain.Source {
	var out []domain.Source
	for _, b := range o.bindings {
		if slices.Contains(b.DependsOn, in) {
			out = append(out, b.Source)
		}
	}
	return out
}

func (o *Orchestrator) fire(in Input, match func(Binding) bool) Pending {
	var pending Pending
	for _, b := range o.bindings {
		if !match(b) {
			continue
		}
		if b.Ready != nil && !b.Ready() {
			o.logger.Debug("refetch gated", "input", string(in), "source", string(b.Source))
			continue
		}
		pending = append(pending, b.Refetch())
	}
	return pending
}

// Pending holds the settle channels of the fetches one input change started.
type Pending []<-chan struct{}

// Wait blocks until every fetch has settled or ctx is done.
func (p Pending) Wait(ctx context.Context) error {
	for _, done := range p {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
