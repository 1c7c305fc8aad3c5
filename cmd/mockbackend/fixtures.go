package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
)

// Fixtures is the on-disk data set the mock backend serves.
type Fixtures struct {
	Stations   map[string][]StationFixture `yaml:"stations"`
	Rainfall   []RainfallFixture           `yaml:"rainfall"`
	Regions    []RegionFixture             `yaml:"regions"`
	Boundaries []BoundaryFixture           `yaml:"boundaries"`
}

// StationFixture mirrors the backend station row. Coordinates stay textual so
// fixtures can carry malformed values.
type StationFixture struct {
	Name     string `yaml:"name"     json:"infrastruc_name"`
	District string `yaml:"district" json:"infrastruc_district"`
	Province string `yaml:"province" json:"infrastruc_province"`
	Type     string `yaml:"type"     json:"infrastruc_type"`
	Lat      string `yaml:"lat"      json:"coordinates_lat"`
	Lon      string `yaml:"lon"      json:"coordinates_long"`
}

type RainfallFixture struct {
	Date  string  `yaml:"date"  json:"date"`
	Value float64 `yaml:"value" json:"value"`
}

type RegionFixture struct {
	RID         string `yaml:"rid"         json:"rid"`
	Gate        int    `yaml:"gate"        json:"gate"`
	Weir        int    `yaml:"weir"        json:"weir"`
	PumpStation int    `yaml:"pumpstation" json:"pumpstation"`
}

type BoundaryFixture struct {
	RID      string `yaml:"rid"      json:"rid"`
	Geometry any    `yaml:"geometry" json:"geometry"`
}

// LoadFixtures reads and decodes a fixtures file. Unknown keys are rejected.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes fixtures from YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if f.Stations == nil {
		f.Stations = map[string][]StationFixture{}
	}
	return &f, nil
}

// StationsFor returns the stations listed under a category's wire name.
func (f *Fixtures) StationsFor(c domain.Category) []StationFixture {
	return f.Stations[c.WireName()]
}

// RainfallBetween returns samples whose date lies in [start, end], in file
// order. Samples with unparseable dates are skipped.
func (f *Fixtures) RainfallBetween(start, end domain.Date) []RainfallFixture {
	out := make([]RainfallFixture, 0, len(f.Rainfall))
	for _, r := range f.Rainfall {
		d, err := domain.ParseDate(r.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Report is the outcome of checking a fixtures file. Problems make the file
// unusable; warnings are data the dashboard tolerates, such as stations that
// will not produce a marker.
type Report struct {
	Problems []string
	Warnings []string
}

func (r *Report) problemf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// OK reports whether no problems were found.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Validate checks the fixtures against the shapes the dashboard expects.
func (f *Fixtures) Validate() *Report {
	r := &Report{}

	known := map[string]bool{}
	for _, c := range domain.Categories() {
		known[c.WireName()] = true
		if len(f.Stations[c.WireName()]) == 0 {
			r.warnf("stations.%s: no stations", c.WireName())
		}
	}
	for key, list := range f.Stations {
		if !known[key] {
			r.problemf("stations.%s: unknown category", key)
			continue
		}
		for i, s := range list {
			if strings.TrimSpace(s.Name) == "" {
				r.problemf("stations.%s[%d]: missing name", key, i)
			}
			if !finite(s.Lat) || !finite(s.Lon) {
				r.warnf("stations.%s[%d] %q: coordinates %q,%q will not be mapped", key, i, s.Name, s.Lat, s.Lon)
			}
		}
	}

	for i, s := range f.Rainfall {
		if _, err := domain.ParseDate(s.Date); err != nil {
			r.problemf("rainfall[%d]: %v", i, err)
		}
		if s.Value < 0 {
			r.problemf("rainfall[%d]: negative value %v", i, s.Value)
		}
	}

	seen := map[string]bool{}
	for i, reg := range f.Regions {
		if reg.RID == "" {
			r.problemf("regions[%d]: missing rid", i)
			continue
		}
		if seen[reg.RID] {
			r.problemf("regions[%d]: duplicate rid %q", i, reg.RID)
		}
		seen[reg.RID] = true
		if reg.Gate < 0 || reg.Weir < 0 || reg.PumpStation < 0 {
			r.problemf("regions[%d] %q: negative count", i, reg.RID)
		}
		if domain.RegionLabel(reg.RID) == domain.UnknownRegionLabel {
			r.warnf("regions[%d] %q: no digits, labelled %s", i, reg.RID, domain.UnknownRegionLabel)
		}
	}

	for i, b := range f.Boundaries {
		if b.RID == "" {
			r.problemf("boundaries[%d]: missing rid", i)
		}
		if b.Geometry == nil {
			r.problemf("boundaries[%d]: missing geometry", i)
		}
	}
	return r
}

func finite(s string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}
