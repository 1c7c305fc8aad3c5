// Package chart renders the dashboard projections as PNG images.
package chart

import (
	"errors"
	"fmt"
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/hydro-dashboard/internal/domain"
)

// ErrNoData is returned when a projection has too little data to draw.
var ErrNoData = errors.New("not enough data to render chart")

// Default image size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// Series colours follow the category buttons: gate green, weir blue,
// pump station red.
var seriesColors = map[string]drawing.Color{
	string(domain.CategoryGate):        gochart.ColorGreen,
	string(domain.CategoryWeir):        gochart.ColorBlue,
	string(domain.CategoryPumpStation): gochart.ColorRed,
}

// Size is an image size. Zero fields fall back to the defaults.
type Size struct {
	Width  int
	Height int
}

func (s Size) orDefault() Size {
	if s.Width <= 0 {
		s.Width = DefaultWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}
	return s
}

// RenderRainfall draws the rainfall line with one x tick per sample. At least
// two samples are needed for a line.
func RenderRainfall(w io.Writer, line domain.LineChart, size Size) error {
	n := len(line.Values)
	if n < 2 {
		return ErrNoData
	}
	size = size.orDefault()

	xs := make([]float64, n)
	ticks := make([]gochart.Tick, n)
	maxY := 0.0
	minY := 0.0
	for i, v := range line.Values {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: line.Labels[i]}
		maxY = max(maxY, v)
		minY = min(minY, v)
	}
	if maxY <= minY {
		maxY = minY + 1
	}

	ch := gochart.Chart{
		Title:      "Rainfall",
		Width:      size.Width,
		Height:     size.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{Ticks: ticks},
		YAxis: gochart.YAxis{
			Name:  "mm",
			Range: &gochart.ContinuousRange{Min: minY, Max: maxY * 1.1},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "rainfall",
				XValues: xs,
				YValues: line.Values,
				Style: gochart.Style{
					StrokeColor: gochart.ColorBlue,
					StrokeWidth: 2,
					DotColor:    gochart.ColorBlue,
					DotWidth:    3,
				},
			},
		},
	}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render rainfall chart: %w", err)
	}
	return nil
}

// RenderRegions draws one stacked bar per region, one segment per category
// series. Regions without any structure are left out.
func RenderRegions(w io.Writer, bars domain.BarChart, size Size) error {
	if len(bars.Labels) == 0 {
		return ErrNoData
	}
	size = size.orDefault()

	stacked := make([]gochart.StackedBar, 0, len(bars.Labels))
	for i, label := range bars.Labels {
		barTotal := 0
		values := make([]gochart.Value, 0, len(bars.Series))
		for _, s := range bars.Series {
			barTotal += s.Values[i]
			values = append(values, gochart.Value{
				Label: s.Name,
				Value: float64(s.Values[i]),
				Style: gochart.Style{
					FillColor:   seriesColors[s.Name],
					StrokeColor: seriesColors[s.Name],
				},
			})
		}
		// go-chart normalizes each bar by its total.
		if barTotal == 0 {
			continue
		}
		stacked = append(stacked, gochart.StackedBar{Name: label, Values: values})
	}
	if len(stacked) == 0 {
		return ErrNoData
	}

	ch := gochart.StackedBarChart{
		Title:      "Structures per region",
		Width:      size.Width,
		Height:     size.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		Bars:       stacked,
	}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render region chart: %w", err)
	}
	return nil
}
