package domain

import "fmt"

// Category is the station kind shown on the map. The set is closed.
type Category string

const (
	CategoryGate        Category = "gate"
	CategoryWeir        Category = "weir"
	CategoryPumpStation Category = "pumpstation"
)

// DefaultCategory is active when a session starts.
const DefaultCategory = CategoryGate

// Categories returns the enumerated set in button order.
func Categories() []Category {
	return []Category{CategoryGate, CategoryWeir, CategoryPumpStation}
}

// ParseCategory maps a raw value onto the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryGate, CategoryWeir, CategoryPumpStation:
		return true
	}
	return false
}

// WireName is the backend collection the category is served from.
func (c Category) WireName() string {
	if c == CategoryGate {
		return "infrastruc"
	}
	return string(c)
}

// Label is the Thai display label used on the category buttons.
func (c Category) Label() string {
	switch c {
	case CategoryGate:
		return "ประตูระบายน้ำ"
	case CategoryWeir:
		return "ฝาย"
	case CategoryPumpStation:
		return "สถานีสูบน้ำ"
	}
	return string(c)
}

// CategorySelector holds the single active category.
type CategorySelector struct {
	active Category
}

// NewCategorySelector starts on DefaultCategory.
func NewCategorySelector() *CategorySelector {
	return &CategorySelector{active: DefaultCategory}
}

// Active returns the current category.
func (s *CategorySelector) Active() Category {
	return s.active
}

// Select makes c active and reports whether the value changed.
func (s *CategorySelector) Select(c Category) (bool, error) {
	if !c.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
	}
	if c == s.active {
		return false, nil
	}
	s.active = c
	return true, nil
}
