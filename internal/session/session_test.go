package session

import (
	"errors"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/marker"
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

func exampleEngine() *Engine {
	return NewEngine([]spectrum.Sample{
		sample(0, 100_000_000, -60),
		sample(0, 200_000_000, -55),
		sample(1050*time.Millisecond, 100_000_000, -62),
	})
}

func TestEngine_Projections(t *testing.T) {
	e := exampleEngine()
	if !e.MultiScan() || len(e.Scans()) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(e.Scans()))
	}
	if len(e.Frequencies()) != 2 {
		t.Errorf("expected 2 frequencies, got %v", e.Frequencies())
	}

	view := NewView()

	points, err := e.Projection(view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 || points[0].LevelDBm != -60 || points[1].LevelDBm != -55 {
		t.Errorf("unexpected spectrum of scan 1: %+v", points)
	}

	view.ScanIndex = 1
	if points, _ = e.Spectrum(view); len(points) != 1 || points[0].LevelDBm != -62 {
		t.Errorf("unexpected spectrum of scan 2: %+v", points)
	}

	view.SetProjection(LevelVsTime)
	points, err = e.Projection(view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 || points[0].LevelDBm != -60 || points[1].LevelDBm != -62 {
		t.Errorf("unexpected time series: %+v", points)
	}

	freq := int64(200_000_000)
	view.FrequencyHz = &freq
	if points, _ = e.TimeSeries(view); len(points) != 1 || points[0].LevelDBm != -55 {
		t.Errorf("unexpected time series at %d Hz: %+v", freq, points)
	}

	view.ScanIndex = 5
	if _, err = e.Scan(view); !errors.Is(err, ErrNoSuchScan) {
		t.Errorf("expected ErrNoSuchScan, got %v", err)
	}

	view.Projection = "3d"
	if _, err = e.Projection(view); err == nil {
		t.Error("expected error for an unknown projection")
	}
}

func TestEngine_GridAndColors(t *testing.T) {
	e := exampleEngine()

	g, err := e.Grid()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Height() != 2 || g.Width() != 2 {
		t.Errorf("unexpected grid size %dx%d", g.Height(), g.Width())
	}

	colors, err := e.Colors(colormap.NewColorScale(colormap.Classic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if colors[1][1] != nil {
		t.Error("missing cell should have no color")
	}
}

func TestEngine_Empty(t *testing.T) {
	e := NewEngine(nil)
	view := NewView()

	if _, err := e.Grid(); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData from Grid, got %v", err)
	}
	if _, err := e.Spectrum(view); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData from Spectrum, got %v", err)
	}
	if _, err := e.TimeSeries(view); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData from TimeSeries, got %v", err)
	}
	if _, err := e.Colors(colormap.NewColorScale(colormap.Classic)); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData from Colors, got %v", err)
	}
}

func TestEngine_Threshold(t *testing.T) {
	samples := []spectrum.Sample{
		sample(0, 1, -1),
		sample(1050*time.Millisecond, 1, -2),
	}
	if e := NewEngine(samples, WithThreshold(2*time.Second)); e.MultiScan() {
		t.Error("a wider threshold should merge both samples into one scan")
	}
}

func TestEngine_Markers(t *testing.T) {
	e := exampleEngine()
	view := NewView()

	m, err := e.PickMarker(view, 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.DataIndex != 1 || m.Value != 200_000_000 || m.Level != -55 {
		t.Errorf("unexpected marker %+v", m)
	}

	if _, err = e.PickMarker(view, 7, ""); !errors.Is(err, ErrNoSuchPoint) {
		t.Errorf("expected ErrNoSuchPoint, got %v", err)
	}

	resolved, err := e.ResolveMarkers(view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 1 || resolved[0].Point.FrequencyHz != 200_000_000 {
		t.Errorf("unexpected resolved markers %+v", resolved)
	}

	// Scan 2 has a single point, so the marker on index 1 no longer resolves.
	view.ScanIndex = 1
	if resolved, _ = e.ResolveMarkers(view); len(resolved) != 0 {
		t.Errorf("marker outside the projection should be dropped, got %+v", resolved)
	}
	if view.Markers.Len() != 1 {
		t.Error("dropping a marker from display must not remove it from the view")
	}

	// Switching projection keeps the data index instead of re-mapping it.
	view.SetProjection(LevelVsTime)
	resolved, _ = e.ResolveMarkers(view)
	if len(resolved) != 1 || resolved[0].Point.LevelDBm != -62 {
		t.Errorf("expected the marker to resolve to index 1 of the time series, got %+v", resolved)
	}

	for i := 0; i < marker.Capacity-1; i++ {
		if _, err = e.PickMarker(view, 0, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err = e.PickMarker(view, 0, ""); !errors.Is(err, marker.ErrAtCapacity) {
		t.Errorf("expected ErrAtCapacity, got %v", err)
	}
}
