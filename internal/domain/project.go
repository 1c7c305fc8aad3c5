package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// UnknownRegionLabel labels a region whose identifier carries no digits.
const UnknownRegionLabel = "Unknown"

// regionDigitsRe finds the first run of digits in a region identifier,
// e.g. "RID-07" -> "07".
var regionDigitsRe = regexp.MustCompile(`\d+`)

// Marker is a station positioned on the map, with the fields its popup shows.
type Marker struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Name     string  `json:"name"`
	District string  `json:"district"`
	Province string  `json:"province"`
	Type     string  `json:"type"`
}

// MarkerLayer is the map projection of a station list.
// len(Markers)+Dropped always equals the number of input stations.
type MarkerLayer struct {
	Markers []Marker `json:"markers"`
	Dropped int      `json:"dropped"`
}

// BarSeries is one category's counts, index-aligned with BarChart.Labels.
type BarSeries struct {
	Name   string `json:"name"`
	Values []int  `json:"values"`
}

// BarChart is the grouped-bar projection of regional aggregates.
type BarChart struct {
	Labels []string    `json:"labels"`
	Series []BarSeries `json:"series"`
}

// LineChart is the rainfall projection: one label and one value per sample.
type LineChart struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// ProjectMarkers turns stations into map markers. A station is dropped when
// either coordinate does not parse to a finite number.
func ProjectMarkers(stations []Station) MarkerLayer {
	layer := MarkerLayer{Markers: make([]Marker, 0, len(stations))}
	for _, s := range stations {
		lat, okLat := parseCoordinate(s.Lat)
		lon, okLon := parseCoordinate(s.Lon)
		if !okLat || !okLon {
			layer.Dropped++
			continue
		}
		layer.Markers = append(layer.Markers, Marker{
			Lat:      lat,
			Lon:      lon,
			Name:     s.Name,
			District: s.District,
			Province: s.Province,
			Type:     s.Type,
		})
	}
	return layer
}

// parseCoordinate parses a textual coordinate. "NaN" and "Inf" parse in Go
// but are not positions.
func parseCoordinate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ProjectRegionBars builds the grouped bar chart. Labels and the three series
// (gate, pumpstation, weir) follow the input order.
func ProjectRegionBars(aggregates []RegionAggregate) BarChart {
	n := len(aggregates)
	chart := BarChart{
		Labels: make([]string, n),
		Series: []BarSeries{
			{Name: string(CategoryGate), Values: make([]int, n)},
			{Name: string(CategoryPumpStation), Values: make([]int, n)},
			{Name: string(CategoryWeir), Values: make([]int, n)},
		},
	}
	for i, a := range aggregates {
		chart.Labels[i] = RegionLabel(a.RegionID)
		chart.Series[0].Values[i] = a.GateCount
		chart.Series[1].Values[i] = a.PumpStationCount
		chart.Series[2].Values[i] = a.WeirCount
	}
	return chart
}

// RegionLabel extracts the leading digit run of a region identifier without
// leading zeros. Identifiers without digits are labelled UnknownRegionLabel.
func RegionLabel(regionID string) string {
	digits := regionDigitsRe.FindString(regionID)
	if digits == "" {
		return UnknownRegionLabel
	}
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// ProjectRainfallLine maps samples 1:1 onto a line chart.
func ProjectRainfallLine(samples []RainfallSample) LineChart {
	line := LineChart{
		Labels: make([]string, len(samples)),
		Values: make([]float64, len(samples)),
	}
	for i, s := range samples {
		line.Labels[i] = s.Date.String()
		line.Values[i] = s.Value
	}
	return line
}
