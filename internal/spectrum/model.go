package spectrum

import (
	"errors"
	"time"
)

// ErrInsufficientData indicates that there is nothing to derive a scan, grid or
// position from. Callers are expected to treat it as "nothing to show".
var ErrInsufficientData = errors.New("insufficient data")

// Sample represents a single level measurement at a specific frequency, as reported
// by a measurement station. Samples are values and never change once received.
type Sample struct {
	Timestamp    time.Time `json:"timestamp"`            // When the sample was taken
	HasTimestamp bool      `json:"-"`                    // False if the record carried no timestamp
	FrequencyHz  int64     `json:"frequencyHz"`          // Measured frequency in Hz
	LevelDBm     float64   `json:"levelDBm"`             // Measured level, usually dBm (see Unit)
	BearingDeg   *float64  `json:"bearingDeg,omitempty"` // Optional DF bearing in degrees
	Unit         string    `json:"unit,omitempty"`       // Optional level unit, e.g. "dBuV"
}

func (s Sample) GetFrequency() int64 {
	return s.FrequencyHz
}

func (s Sample) GetLevel() float64 {
	return s.LevelDBm
}

// Scan represents one sweep's worth of samples sharing approximately one timestamp.
// Samples are ordered by frequency. Scans are derived and rebuilt as a whole whenever
// the underlying sample set changes.
type Scan struct {
	Number    int       `json:"number"`            // 1-based, ordered by time
	Timestamp time.Time `json:"timestamp"`         // Representative (first) timestamp of the scan
	Samples   []Sample  `json:"samples,omitempty"` // Ordered by FrequencyHz
}

// FrequencyStart returns the lowest frequency in the scan, or 0 for an empty scan.
func (s *Scan) FrequencyStart() int64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[0].FrequencyHz
}

// FrequencyEnd returns the highest frequency in the scan, or 0 for an empty scan.
func (s *Scan) FrequencyEnd() int64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].FrequencyHz
}

// AxisGrid is a dense time x frequency matrix of levels. A nil cell means that no
// sample was placed there; it is never replaced with a synthetic zero.
type AxisGrid struct {
	Frequencies []int64      `json:"frequencies"` // Strictly increasing
	Timestamps  []time.Time  `json:"timestamps"`  // Strictly increasing, then zero for untimestamped scans
	Levels      [][]*float64 `json:"levels"`      // Indexed [time][frequency]
}

// Width returns the number of frequency columns.
func (g *AxisGrid) Width() int {
	return len(g.Frequencies)
}

// Height returns the number of time rows.
func (g *AxisGrid) Height() int {
	return len(g.Timestamps)
}

// At returns the level stored at the given cell and whether it holds data.
// Out of range indexes report no data.
func (g *AxisGrid) At(timeIndex, freqIndex int) (float64, bool) {
	if timeIndex < 0 || timeIndex >= len(g.Levels) {
		return 0, false
	}
	row := g.Levels[timeIndex]
	if freqIndex < 0 || freqIndex >= len(row) || row[freqIndex] == nil {
		return 0, false
	}
	return *row[freqIndex], true
}

// LevelPoint is one point of a 1-D projection: either level over time for a fixed
// frequency, or level over frequency for a single scan.
type LevelPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	FrequencyHz int64     `json:"frequencyHz"`
	LevelDBm    float64   `json:"levelDBm"`
}
