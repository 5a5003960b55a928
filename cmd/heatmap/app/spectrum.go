package app

import (
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/config"
	"github.com/roman-kulish/spectrum-locator/internal/grid"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// SpectrumData is the render input: one row per scan, one column per frequency.
type SpectrumData struct {
	Width, Height                int
	FrequencyMin, FrequencyMax   float64
	TimestampStart, TimestampEnd time.Time
	Frequencies                  []int64
	Timestamps                   []time.Time
	Bounds                       colormap.Bounds
	Levels                       [][]*float64
}

func NewSpectrumData(g *spectrum.AxisGrid, bounds colormap.Bounds) *SpectrumData {
	s := SpectrumData{
		Width:       g.Width(),
		Height:      g.Height(),
		Frequencies: g.Frequencies,
		Timestamps:  g.Timestamps,
		Bounds:      bounds,
		Levels:      g.Levels,
	}

	if s.Width > 0 {
		s.FrequencyMin = float64(g.Frequencies[0])
		s.FrequencyMax = float64(g.Frequencies[s.Width-1])
	}
	// Rows of untimestamped scans trail the timed ones with the zero time.
	for _, ts := range g.Timestamps {
		if ts.IsZero() {
			break
		}
		if s.TimestampStart.IsZero() {
			s.TimestampStart = ts
		}
		s.TimestampEnd = ts
	}
	return &s
}

// Bounds selects the level range of the color scale. Percentile bounds are used
// when enabled, smoothed scan by scan when smoothing is set; otherwise the observed
// range. Manual limits override either end.
func Bounds(g *spectrum.AxisGrid, display config.DisplayConfig, minPower, maxPower *float64) colormap.Bounds {
	var bounds colormap.Bounds
	switch stats, ok := grid.Stats(g); {
	case display.Percentile && display.Smoothing > 0:
		sb := colormap.NewSmoothBounds(display.Smoothing)
		for _, row := range g.Levels {
			for _, level := range row {
				sb.Update(level)
			}
		}
		bounds = sb.Current()
	case display.Percentile:
		bounds = colormap.GridBounds(g.Levels)
	case ok:
		bounds = colormap.Bounds{Min: stats.Min, Max: stats.Max, Mean: stats.Mean, Reference: stats.Mean}
	default:
		bounds = colormap.DefaultBounds()
	}

	if minPower != nil {
		bounds.Min = *minPower
	}
	if maxPower != nil {
		bounds.Max = *maxPower
	}
	return bounds
}
