package domain

import "context"

// Backend is the set of remote collections the dashboard reads. Any error is
// treated as an opaque transport failure by the caller.
type Backend interface {
	FetchStations(ctx context.Context, category Category) ([]Station, error)
	FetchStationCounts(ctx context.Context) (StationCount, error)

	// FetchRainfall returns samples for the inclusive range [start, end].
	FetchRainfall(ctx context.Context, start, end Date) ([]RainfallSample, error)

	FetchRegionalAggregates(ctx context.Context) ([]RegionAggregate, error)
	FetchRegionBoundaries(ctx context.Context) ([]RegionBoundary, error)
}
