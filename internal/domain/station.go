package domain

// Station is one hydraulic structure. Lat and Lon keep the backend's textual
// form; they are parsed only when projecting markers.
type Station struct {
	Name     string `json:"name"`
	District string `json:"district"`
	Province string `json:"province"`
	Type     string `json:"type"`
	Lat      string `json:"lat"`
	Lon      string `json:"lon"`
}

// StationSet is a station list tagged with the category it was fetched for.
type StationSet struct {
	Category Category  `json:"category"`
	Stations []Station `json:"stations"`
}

// StationCount holds totals per category, independent of the active one.
type StationCount map[Category]int

// Get returns the count for c, 0 when absent.
func (sc StationCount) Get(c Category) int {
	return sc[c]
}

// Total sums every category.
func (sc StationCount) Total() int {
	total := 0
	for _, n := range sc {
		total += n
	}
	return total
}
