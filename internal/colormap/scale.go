package colormap

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/spectrum-locator/internal/grid"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

const DefaultSize = 256 // Default number of pre-computed colors

// WithSize sets the number of pre-computed color stops. Values below 2 are ignored.
func WithSize(size int) func(*ColorScale) {
	return func(cs *ColorScale) {
		if size >= 2 {
			cs.size = size
		}
	}
}

// WithNoDataColor sets the color renderers should use for cells without data. The
// default is fully transparent, which no theme color is.
func WithNoDataColor(c color.Color) func(*ColorScale) {
	return func(cs *ColorScale) {
		cs.noData = c
	}
}

// ColorScale is a continuous color scale over the unit interval. It pre-computes
// color stops from a theme and interpolates linearly between neighbouring stops.
// A ColorScale is immutable once created and safe for concurrent use.
type ColorScale struct {
	theme  Theme
	size   int
	stops  []colorful.Color
	noData color.Color
}

// NewColorScale creates a new color scale for the theme. Unknown themes fall back
// to Enhanced; use ParseTheme to validate user input first.
func NewColorScale(theme Theme, options ...func(*ColorScale)) *ColorScale {
	fn, ok := themes[theme]
	if !ok {
		theme, fn = Enhanced, enhanced
	}

	cs := ColorScale{
		theme:  theme,
		size:   DefaultSize,
		noData: color.Transparent,
	}

	for _, option := range options {
		option(&cs)
	}

	cs.stops = make([]colorful.Color, cs.size)
	for i := range cs.stops {
		cs.stops[i] = fn(float64(i) / float64(cs.size-1)).Clamped()
	}

	return &cs
}

// Theme returns the theme the scale was built from.
func (cs *ColorScale) Theme() Theme {
	return cs.theme
}

// Size returns the number of color stops.
func (cs *ColorScale) Size() int {
	return cs.size
}

// NoData returns the color for cells without data.
func (cs *ColorScale) NoData() color.Color {
	return cs.noData
}

// At returns the color at position t of the scale. t is clamped to [0, 1];
// NaN maps to the bottom of the scale.
func (cs *ColorScale) At(t float64) color.Color {
	if math.IsNaN(t) {
		t = 0
	}
	t = clamp01(t)

	pos := t * float64(cs.size-1)
	i := int(math.Floor(pos))
	if i >= cs.size-1 {
		return toRGBA(cs.stops[cs.size-1])
	}
	return toRGBA(cs.stops[i].BlendRgb(cs.stops[i+1], pos-float64(i)))
}

// Midpoint returns the color in the middle of the scale.
func (cs *ColorScale) Midpoint() color.Color {
	return cs.At(0.5)
}

// Map returns the color for a level within bounds. A nil level maps to the no-data
// color, a degenerate range maps to the midpoint.
func (cs *ColorScale) Map(level *float64, bounds Bounds) color.Color {
	if level == nil {
		return cs.noData
	}
	span := bounds.Max - bounds.Min
	if span <= 0 || math.IsNaN(span) {
		return cs.Midpoint()
	}
	return cs.At((*level - bounds.Min) / span)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// SpectrogramColors maps every cell of the grid to a color, interpolating linearly
// across the observed [min, max] level range. Cells without data stay nil. When all
// present cells hold the same level, every present cell gets the scale midpoint.
func SpectrogramColors(g *spectrum.AxisGrid, scale *ColorScale) ([][]color.Color, error) {
	stats, ok := grid.Stats(g)
	if !ok {
		return nil, fmt.Errorf("mapping spectrogram colors: %w", spectrum.ErrInsufficientData)
	}
	return SpectrogramColorsInRange(g, scale, Bounds{
		Min:       stats.Min,
		Max:       stats.Max,
		Mean:      stats.Mean,
		Reference: stats.Mean,
	})
}

// SpectrogramColorsInRange is like SpectrogramColors but uses the given bounds
// instead of the observed range. Levels outside the bounds are clamped.
func SpectrogramColorsInRange(g *spectrum.AxisGrid, scale *ColorScale, bounds Bounds) ([][]color.Color, error) {
	if g == nil || len(g.Levels) == 0 {
		return nil, fmt.Errorf("mapping spectrogram colors: %w", spectrum.ErrInsufficientData)
	}

	colors := make([][]color.Color, len(g.Levels))
	for t, row := range g.Levels {
		colors[t] = make([]color.Color, len(row))
		for f, level := range row {
			if level == nil {
				continue
			}
			colors[t][f] = scale.Map(level, bounds)
		}
	}
	return colors, nil
}
