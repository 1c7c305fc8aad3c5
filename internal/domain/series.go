package domain

import "encoding/json"

// RainfallSample is one observation in the active window. Samples keep the
// backend's order; duplicate dates are passed through.
type RainfallSample struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// RegionAggregate counts structures per category in one administrative region.
type RegionAggregate struct {
	RegionID         string `json:"region_id"`
	GateCount        int    `json:"gate_count"`
	WeirCount        int    `json:"weir_count"`
	PumpStationCount int    `json:"pumpstation_count"`
}

// RegionBoundary carries a region's geometry untouched to the map layer.
type RegionBoundary struct {
	RegionID string          `json:"region_id"`
	Geometry json.RawMessage `json:"geometry"`
}
