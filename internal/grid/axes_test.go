package grid

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/scan"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

var baseTime = time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

func sample(offset time.Duration, freq int64, level float64) spectrum.Sample {
	return spectrum.Sample{
		Timestamp:    baseTime.Add(offset),
		HasTimestamp: true,
		FrequencyHz:  freq,
		LevelDBm:     level,
	}
}

func exampleScans() []spectrum.Scan {
	return scan.NewSegmenter().Segment([]spectrum.Sample{
		sample(0, 100_000_000, -60),
		sample(0, 200_000_000, -55),
		sample(1050*time.Millisecond, 100_000_000, -62),
	}).Scans
}

func TestBuildAxes(t *testing.T) {
	g, err := BuildAxes(exampleScans())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(g.Frequencies, []int64{100_000_000, 200_000_000}) {
		t.Errorf("unexpected frequencies %v", g.Frequencies)
	}
	if len(g.Timestamps) != 2 || !g.Timestamps[0].Equal(baseTime) || !g.Timestamps[1].Equal(baseTime.Add(1050*time.Millisecond)) {
		t.Errorf("unexpected timestamps %v", g.Timestamps)
	}
	if len(g.Levels) != len(g.Timestamps) {
		t.Fatalf("expected %d rows, got %d", len(g.Timestamps), len(g.Levels))
	}
	for i, row := range g.Levels {
		if len(row) != len(g.Frequencies) {
			t.Errorf("row %d: expected %d cells, got %d", i, len(g.Frequencies), len(row))
		}
	}

	cases := []struct {
		t, f    int
		level   float64
		present bool
	}{
		{0, 0, -60, true},
		{0, 1, -55, true},
		{1, 0, -62, true},
		{1, 1, 0, false},
	}
	for _, c := range cases {
		level, ok := g.At(c.t, c.f)
		if ok != c.present {
			t.Errorf("cell [%d][%d]: expected present=%v, got %v", c.t, c.f, c.present, ok)
			continue
		}
		if ok && level != c.level {
			t.Errorf("cell [%d][%d]: expected %f, got %f", c.t, c.f, c.level, level)
		}
	}

	if g.Levels[1][1] != nil {
		t.Error("missing cell must be nil, not a synthetic zero")
	}
	if _, ok := g.At(5, 0); ok {
		t.Error("out of range cell should report no data")
	}
}

func TestBuildAxes_RoundTrip(t *testing.T) {
	var samples []spectrum.Sample
	for s := 0; s < 6; s++ {
		for f := 0; f < 8; f++ {
			if (s+f)%3 == 0 {
				continue // leave holes
			}
			samples = append(samples, sample(time.Duration(s)*2*time.Second, int64(f)*1000, float64(-s*10-f)))
		}
	}

	scans := scan.NewSegmenter().Segment(samples).Scans
	g, err := BuildAxes(scans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	placed := make(map[[2]int]float64)
	for _, sc := range scans {
		ti := indexOfTime(g.Timestamps, sc.Timestamp)
		for _, s := range sc.Samples {
			fi := indexOfFreq(g.Frequencies, s.FrequencyHz)
			placed[[2]int{ti, fi}] = s.LevelDBm
		}
	}

	for ti := range g.Timestamps {
		for fi := range g.Frequencies {
			level, ok := g.At(ti, fi)
			expected, wasPlaced := placed[[2]int{ti, fi}]
			switch {
			case wasPlaced && !ok:
				t.Errorf("cell [%d][%d] lost its sample", ti, fi)
			case wasPlaced && level != expected:
				t.Errorf("cell [%d][%d]: expected %f, got %f", ti, fi, expected, level)
			case !wasPlaced && ok:
				t.Errorf("cell [%d][%d] should report no data, got %f", ti, fi, level)
			}
		}
	}
}

func indexOfTime(ts []time.Time, t time.Time) int {
	for i, v := range ts {
		if v.Equal(t) {
			return i
		}
	}
	return -1
}

func indexOfFreq(fs []int64, f int64) int {
	for i, v := range fs {
		if v == f {
			return i
		}
	}
	return -1
}

func TestBuildAxes_Untimestamped(t *testing.T) {
	untimed := func(freq int64, level float64) spectrum.Sample {
		return spectrum.Sample{FrequencyHz: freq, LevelDBm: level}
	}
	scans := scan.NewSegmenter().Segment([]spectrum.Sample{
		untimed(100, -60),
		sample(0, 100, -50),
		untimed(100, -70),
		untimed(200, -80),
	}).Scans

	g, err := BuildAxes(scans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Timestamps) != len(scans) || len(g.Levels) != len(scans) {
		t.Fatalf("expected one row per scan (%d), got %d timestamps and %d rows", len(scans), len(g.Timestamps), len(g.Levels))
	}
	if !g.Timestamps[0].Equal(baseTime) {
		t.Errorf("timed row must come first, got %v", g.Timestamps[0])
	}
	for i := 1; i < len(g.Timestamps); i++ {
		if !g.Timestamps[i].IsZero() {
			t.Errorf("row %d: expected the zero time, got %v", i, g.Timestamps[i])
		}
	}

	// Every sample keeps its own cell.
	cases := []struct {
		t, f  int
		level float64
	}{
		{0, 0, -50},
		{1, 0, -60},
		{2, 0, -70},
		{3, 1, -80},
	}
	for _, c := range cases {
		if level, ok := g.At(c.t, c.f); !ok || level != c.level {
			t.Errorf("cell [%d][%d]: expected %f, got %f (present=%v)", c.t, c.f, c.level, level, ok)
		}
	}
	if _, ok := g.At(1, 1); ok {
		t.Error("cell [1][1] should report no data")
	}
}

func TestBuildAxes_Empty(t *testing.T) {
	if _, err := BuildAxes(nil); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestLevelVsTime(t *testing.T) {
	scans := exampleScans()

	freq := int64(100_000_000)
	points, err := LevelVsTime(scans, &freq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].LevelDBm != -60 || points[1].LevelDBm != -62 {
		t.Errorf("unexpected levels %+v", points)
	}
	if !points[0].Timestamp.Before(points[1].Timestamp) {
		t.Error("points are not time ordered")
	}

	defaulted, err := LevelVsTime(scans, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(defaulted, points) {
		t.Errorf("nil frequency should default to the first axis frequency, got %+v", defaulted)
	}

	missing := int64(150_000_000)
	points, err = LevelVsTime(scans, &missing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected no points for an absent frequency, got %+v", points)
	}

	if _, err = LevelVsTime(nil, nil); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestLevelVsFrequency(t *testing.T) {
	sc := spectrum.Scan{
		Number:    1,
		Timestamp: baseTime,
		Samples: []spectrum.Sample{
			sample(0, 300, -3),
			sample(0, 100, -1),
			sample(0, 200, -2),
		},
	}

	points := LevelVsFrequency(sc)
	var freqs []int64
	for _, p := range points {
		freqs = append(freqs, p.FrequencyHz)
		if !p.Timestamp.Equal(baseTime) {
			t.Errorf("point should carry the scan timestamp, got %s", p.Timestamp)
		}
	}
	if !reflect.DeepEqual(freqs, []int64{100, 200, 300}) {
		t.Errorf("expected frequency ordered points, got %v", freqs)
	}
}

func TestStats(t *testing.T) {
	g, err := BuildAxes(exampleScans())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, ok := Stats(g)
	if !ok {
		t.Fatal("expected statistics")
	}
	if stats.Min != -62 || stats.Max != -55 || stats.Count != 3 || stats.Cells != 4 {
		t.Errorf("unexpected statistics %+v", stats)
	}
	if mean := (-60.0 - 55.0 - 62.0) / 3; stats.Mean != mean {
		t.Errorf("expected mean %f, got %f", mean, stats.Mean)
	}
	if stats.Coverage() != 0.75 {
		t.Errorf("expected coverage 0.75, got %f", stats.Coverage())
	}

	if _, ok = Stats(&spectrum.AxisGrid{Levels: [][]*float64{{nil}}}); ok {
		t.Error("grid without data should not report statistics")
	}
}
