package domain

// MaxSpanDays bounds end-start of a DateWindow.
const MaxSpanDays = 3

// DateWindow is the rainfall query range. Either endpoint may be unset while
// the user is still picking; once both are set, Start <= End and
// End-Start <= MaxSpanDays hold after every edit.
type DateWindow struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Complete reports whether both endpoints are set.
func (w DateWindow) Complete() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

// SpanDays returns End-Start in days, or 0 for an incomplete window.
func (w DateWindow) SpanDays() int {
	if !w.Complete() {
		return 0
	}
	return w.Start.DaysUntil(w.End)
}

// SetStart moves the start to d. An end further than MaxSpanDays away is
// pulled to d+MaxSpanDays; an end before d is moved to d.
func (w *DateWindow) SetStart(d Date) DateWindow {
	w.Start = d
	if w.End.IsZero() {
		return *w
	}
	switch {
	case w.End.Before(d):
		w.End = d
	case d.DaysUntil(w.End) > MaxSpanDays:
		w.End = d.AddDays(MaxSpanDays)
	}
	return *w
}

// SetEnd moves the end to d. A start further than MaxSpanDays back is pulled
// to d-MaxSpanDays; a start after d is moved to d.
func (w *DateWindow) SetEnd(d Date) DateWindow {
	w.End = d
	if w.Start.IsZero() {
		return *w
	}
	switch {
	case w.Start.After(d):
		w.Start = d
	case w.Start.DaysUntil(d) > MaxSpanDays:
		w.Start = d.AddDays(-MaxSpanDays)
	}
	return *w
}

// SetStartString parses s and applies SetStart. On a parse failure the
// window is unchanged and the error wraps ErrInvalidRange.
func (w *DateWindow) SetStartString(s string) (DateWindow, error) {
	d, err := ParseDate(s)
	if err != nil {
		return *w, err
	}
	return w.SetStart(d), nil
}

// SetEndString is the SetEnd counterpart of SetStartString.
func (w *DateWindow) SetEndString(s string) (DateWindow, error) {
	d, err := ParseDate(s)
	if err != nil {
		return *w, err
	}
	return w.SetEnd(d), nil
}

// StartMax is the latest date the start picker should offer.
func (w DateWindow) StartMax() Date {
	if w.End.IsZero() {
		return Date{}
	}
	return w.End.AddDays(MaxSpanDays)
}

// EndMin is the earliest date the end picker should offer.
func (w DateWindow) EndMin() Date {
	if w.Start.IsZero() {
		return Date{}
	}
	return w.Start.AddDays(-MaxSpanDays)
}
