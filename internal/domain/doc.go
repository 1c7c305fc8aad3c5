// Package domain models the hydraulic-infrastructure dashboard: stations,
// rainfall series, regional structure counts and the inputs a user edits.
//
// # Backend Data Conventions
//
// Station records come from the infrastructure backend, one collection per
// category. Gates are served under the legacy collection name "infrastruc";
// weirs and pump stations use their own names:
//
//	gate        -> /infrastruc
//	weir        -> /weir
//	pumpstation -> /pumpstation
//
// Coordinates are textual on the wire ("coordinates_lat", "coordinates_long")
// and are only parsed to floating point when a marker is projected. A station
// whose coordinates do not parse to finite numbers stays in search results and
// counts but never reaches the map layer. See [ProjectMarkers].
//
// Region identifiers are free-form ("RID-07", "12", 3). The chart label for a
// region is its leading run of digits without leading zeros, so "RID-07"
// becomes "7". Identifiers without digits are labelled "Unknown". See
// [RegionLabel].
//
// # Date Window
//
// Rainfall is requested for an inclusive window of calendar dates whose span
// never exceeds [MaxSpanDays]. Editing one endpoint never fails because of the
// span; the opposite endpoint is dragged along instead:
//
//	start=2024-01-01 end=2024-01-02, set end=2024-01-10
//	  -> start=2024-01-07 end=2024-01-10
//
// The picker bounds exposed to the UI ([DateWindow.StartMax] and
// [DateWindow.EndMin]) let the window slide in either direction while a single
// edit still cannot widen it past the maximum span.
package domain
