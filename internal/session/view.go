package session

import (
	"github.com/couchcryptid/hydro-dashboard/internal/datasource"
	"github.com/couchcryptid/hydro-dashboard/internal/domain"
)

// Map defaults: centred on Thailand.
const (
	DefaultMapLat  = 13.75
	DefaultMapLon  = 100.5
	DefaultMapZoom = 6
)

// LatLon is a map position.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapView is everything the map renderer draws.
type MapView struct {
	Center     LatLon                  `json:"center"`
	Zoom       int                     `json:"zoom"`
	Markers    domain.MarkerLayer      `json:"markers"`
	Boundaries []domain.RegionBoundary `json:"boundaries"`
}

// WindowView is the date window plus the picker bounds derived from it.
type WindowView struct {
	domain.DateWindow
	StartMax domain.Date `json:"start_max"`
	EndMin   domain.Date `json:"end_min"`
}

// View is the projected state of a session at one instant.
type View struct {
	ID            string          `json:"id"`
	Category      domain.Category `json:"category"`
	CategoryLabel string          `json:"category_label"`
	Search        string          `json:"search"`
	Window        WindowView      `json:"window"`

	// StationsCategory is the category the displayed stations were fetched
	// for. It lags Category while a switch is loading or after it failed.
	StationsCategory domain.Category     `json:"stations_category,omitempty"`
	Stations         []domain.Station    `json:"stations"`
	Map              MapView             `json:"map"`
	Counts           domain.StationCount `json:"counts"`
	Rainfall         domain.LineChart    `json:"rainfall"`
	Regions          domain.BarChart     `json:"regions"`

	Sources []datasource.Summary `json:"sources"`
}

// View projects the current inputs and source data. Sources that have never
// succeeded project as empty.
func (s *Session) View() View {
	inputs := s.Inputs()

	stations := s.stations.Snapshot()
	counts := s.counts.Snapshot()
	rainfall := s.rainfall.Snapshot()
	regions := s.regions.Snapshot()
	boundaries := s.boundaries.Snapshot()

	filtered := domain.FilterStations(inputs.Search, stations.Data.Stations)
	if filtered == nil {
		filtered = []domain.Station{}
	}
	boundaryList := boundaries.Data
	if boundaryList == nil {
		boundaryList = []domain.RegionBoundary{}
	}

	countsView := make(domain.StationCount, len(domain.Categories()))
	for _, c := range domain.Categories() {
		countsView[c] = counts.Data.Get(c)
	}

	return View{
		ID:            s.id,
		Category:      inputs.Category,
		CategoryLabel: inputs.Category.Label(),
		Search:        inputs.Search,
		Window: WindowView{
			DateWindow: inputs.Window,
			StartMax:   inputs.Window.StartMax(),
			EndMin:     inputs.Window.EndMin(),
		},
		StationsCategory: stations.Data.Category,
		Stations:         filtered,
		Map: MapView{
			Center:     LatLon{Lat: DefaultMapLat, Lon: DefaultMapLon},
			Zoom:       DefaultMapZoom,
			Markers:    domain.ProjectMarkers(filtered),
			Boundaries: boundaryList,
		},
		Counts:   countsView,
		Rainfall: domain.ProjectRainfallLine(rainfall.Data),
		Regions:  domain.ProjectRegionBars(regions.Data),
		Sources:  s.summaries(),
	}
}

// summaries lists the per-source flags in domain.Sources order.
func (s *Session) summaries() []datasource.Summary {
	out := make([]datasource.Summary, 0, len(domain.Sources()))
	for _, src := range domain.Sources() {
		switch src {
		case domain.SourceStations:
			out = append(out, s.stations.Summary())
		case domain.SourceStationCounts:
			out = append(out, s.counts.Summary())
		case domain.SourceRainfall:
			out = append(out, s.rainfall.Summary())
		case domain.SourceRegionalAggregates:
			out = append(out, s.regions.Summary())
		case domain.SourceRegionBoundaries:
			out = append(out, s.boundaries.Summary())
		}
	}
	return out
}

// RainfallSamples returns the last successfully fetched rainfall series.
func (s *Session) RainfallSamples() []domain.RainfallSample {
	return s.rainfall.Snapshot().Data
}

// RegionAggregates returns the last successfully fetched regional counts.
func (s *Session) RegionAggregates() []domain.RegionAggregate {
	return s.regions.Snapshot().Data
}
