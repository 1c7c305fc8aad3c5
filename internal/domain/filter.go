package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterStations returns, in their original order, the stations whose name,
// district or province contains query case-insensitively. An empty query
// returns stations as is.
func FilterStations(query string, stations []Station) []Station {
	if query == "" {
		return stations
	}

	// A Caser keeps state between calls and must not be shared.
	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if strings.Contains(fold.String(s.Name), needle) ||
			strings.Contains(fold.String(s.District), needle) ||
			strings.Contains(fold.String(s.Province), needle) {
			out = append(out, s)
		}
	}
	return out
}
