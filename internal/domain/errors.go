package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when a date edit cannot be parsed.
	// The window is left untouched.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidCategory is returned for a category outside the closed set.
	ErrInvalidCategory = errors.New("invalid station category")
)

// Source names one of the remote collections feeding the dashboard.
type Source string

const (
	SourceStations           Source = "stations"
	SourceStationCounts      Source = "station_counts"
	SourceRainfall           Source = "rainfall"
	SourceRegionalAggregates Source = "regional_aggregates"
	SourceRegionBoundaries   Source = "region_boundaries"
)

// Sources lists every collection in display order.
func Sources() []Source {
	return []Source{
		SourceStations,
		SourceStationCounts,
		SourceRainfall,
		SourceRegionalAggregates,
		SourceRegionBoundaries,
	}
}

// TransportError wraps any failure reported by a backend collaborator.
// All transport failures are treated alike: the owning source flips to
// failed and keeps whatever it last rendered.
type TransportError struct {
	Source Source
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
