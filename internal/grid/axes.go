// Package grid builds the frequency and time axes of a measurement, the dense level
// grid used by spectrogram and 3-D views, and the 1-D projections.
package grid

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// BuildAxes collects the unique frequencies and scan timestamps and places every
// sample level into a timestamps x frequencies grid. Cells without a sample stay nil.
// When two samples land in the same cell, the later one in scan order wins.
//
// A scan with the zero timestamp has no place on the time axis. Each such scan gets
// a row of its own after the timed rows, in scan order, with the zero time as label.
func BuildAxes(scans []spectrum.Scan) (*spectrum.AxisGrid, error) {
	if len(scans) == 0 {
		return nil, fmt.Errorf("building axes: %w", spectrum.ErrInsufficientData)
	}

	freqSet := make(map[int64]struct{})
	timeSet := make(map[int64]time.Time)
	var untimed int
	for _, sc := range scans {
		if sc.Timestamp.IsZero() {
			untimed++
		} else {
			timeSet[sc.Timestamp.UnixNano()] = sc.Timestamp
		}
		for _, s := range sc.Samples {
			freqSet[s.FrequencyHz] = struct{}{}
		}
	}

	frequencies := make([]int64, 0, len(freqSet))
	for f := range freqSet {
		frequencies = append(frequencies, f)
	}
	slices.Sort(frequencies)

	timestamps := make([]time.Time, 0, len(timeSet)+untimed)
	for _, ts := range timeSet {
		timestamps = append(timestamps, ts)
	}
	slices.SortFunc(timestamps, func(a, b time.Time) int {
		return a.Compare(b)
	})

	freqIndex := make(map[int64]int, len(frequencies))
	for i, f := range frequencies {
		freqIndex[f] = i
	}
	timeIndex := make(map[int64]int, len(timestamps))
	for i, ts := range timestamps {
		timeIndex[ts.UnixNano()] = i
	}

	timestamps = append(timestamps, make([]time.Time, untimed)...)

	levels := make([][]*float64, len(timestamps))
	for i := range levels {
		levels[i] = make([]*float64, len(frequencies))
	}

	next := len(timeIndex)
	for _, sc := range scans {
		var row []*float64
		if sc.Timestamp.IsZero() {
			row = levels[next]
			next++
		} else {
			row = levels[timeIndex[sc.Timestamp.UnixNano()]]
		}
		for _, s := range sc.Samples {
			level := s.LevelDBm
			row[freqIndex[s.FrequencyHz]] = &level
		}
	}

	return &spectrum.AxisGrid{
		Frequencies: frequencies,
		Timestamps:  timestamps,
		Levels:      levels,
	}, nil
}

// LevelVsTime returns the level of every sample matching frequencyHz exactly, ordered
// by time. A nil frequency selects the lowest frequency present.
func LevelVsTime(scans []spectrum.Scan, frequencyHz *int64) ([]spectrum.LevelPoint, error) {
	if len(scans) == 0 {
		return nil, fmt.Errorf("projecting level over time: %w", spectrum.ErrInsufficientData)
	}

	var freq int64
	if frequencyHz != nil {
		freq = *frequencyHz
	} else {
		var ok bool
		if freq, ok = firstFrequency(scans); !ok {
			return nil, fmt.Errorf("projecting level over time: %w", spectrum.ErrInsufficientData)
		}
	}

	var points []spectrum.LevelPoint
	for _, sc := range scans {
		for _, s := range sc.Samples {
			if s.FrequencyHz != freq {
				continue
			}
			ts := s.Timestamp
			if !s.HasTimestamp {
				ts = sc.Timestamp
			}
			points = append(points, spectrum.LevelPoint{
				Timestamp:   ts,
				FrequencyHz: s.FrequencyHz,
				LevelDBm:    s.LevelDBm,
			})
		}
	}

	slices.SortStableFunc(points, func(a, b spectrum.LevelPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return points, nil
}

// LevelVsFrequency returns the samples of a single scan as a frequency ordered series.
func LevelVsFrequency(scan spectrum.Scan) []spectrum.LevelPoint {
	points := make([]spectrum.LevelPoint, len(scan.Samples))
	for i, s := range scan.Samples {
		points[i] = spectrum.LevelPoint{
			Timestamp:   scan.Timestamp,
			FrequencyHz: s.FrequencyHz,
			LevelDBm:    s.LevelDBm,
		}
	}

	// Segmented scans are already ordered, but scans built by hand may not be.
	if !slices.IsSortedFunc(points, compareFrequency) {
		slices.SortStableFunc(points, compareFrequency)
	}
	return points
}

func compareFrequency(a, b spectrum.LevelPoint) int {
	return cmp.Compare(a.FrequencyHz, b.FrequencyHz)
}

func firstFrequency(scans []spectrum.Scan) (int64, bool) {
	found := false
	var lowest int64 = math.MaxInt64
	for _, sc := range scans {
		for _, s := range sc.Samples {
			if s.FrequencyHz < lowest {
				lowest = s.FrequencyHz
				found = true
			}
		}
	}
	return lowest, found
}

// LevelStats summarises the present cells of a grid.
type LevelStats struct {
	Min   float64
	Max   float64
	Mean  float64
	Count int // Number of cells holding data
	Cells int // Total number of cells
}

// Coverage returns the fraction of grid cells that hold data.
func (s LevelStats) Coverage() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.Count) / float64(s.Cells)
}

// Stats computes level statistics over cells holding data. Missing cells are never
// counted as zero. ok is false if the grid holds no data at all.
func Stats(g *spectrum.AxisGrid) (stats LevelStats, ok bool) {
	if g == nil {
		return LevelStats{}, false
	}

	stats.Min = math.Inf(1)
	stats.Max = math.Inf(-1)

	var sum float64
	for _, row := range g.Levels {
		stats.Cells += len(row)
		for _, level := range row {
			if level == nil {
				continue
			}
			stats.Min = min(stats.Min, *level)
			stats.Max = max(stats.Max, *level)
			sum += *level
			stats.Count++
		}
	}

	if stats.Count == 0 {
		return LevelStats{Cells: stats.Cells}, false
	}
	stats.Mean = sum / float64(stats.Count)
	return stats, true
}
