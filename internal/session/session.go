// Package session ties segmentation, grids, projections and markers together for
// one measurement result. View state is owned by the caller and passed into every
// call; the Engine itself is immutable after construction.
package session

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/grid"
	"github.com/roman-kulish/spectrum-locator/internal/marker"
	"github.com/roman-kulish/spectrum-locator/internal/scan"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

var (
	// ErrNoSuchScan is returned when a view selects a scan index that does not exist.
	ErrNoSuchScan = errors.New("no such scan")

	// ErrNoSuchPoint is returned when a marker is picked outside the active projection.
	ErrNoSuchPoint = errors.New("no such point")
)

// Projection selects the 1-D view of a measurement.
type Projection string

const (
	LevelVsFrequency Projection = "frequency" // Spectrum of the selected scan
	LevelVsTime      Projection = "time"      // Level of the selected frequency over all scans
)

// View is the caller-owned selection state of a measurement display.
type View struct {
	ScanIndex   int    // 0-based index into the segmented scans
	FrequencyHz *int64 // nil selects the lowest frequency
	Projection  Projection
	Markers     *marker.Tracker
}

// NewView creates a view on the first scan's spectrum with an empty marker set.
func NewView() *View {
	return &View{
		Projection: LevelVsFrequency,
		Markers:    marker.NewTracker(),
	}
}

// SetProjection switches the projection. Existing markers keep their data index;
// markers that do not resolve in the new projection are dropped by ResolveMarkers.
func (v *View) SetProjection(p Projection) {
	v.Projection = p
}

// ResolvedMarker is a marker together with the projection point it refers to.
type ResolvedMarker struct {
	marker.Marker
	Point spectrum.LevelPoint
}

// WithThreshold sets the scan clustering threshold
func WithThreshold(threshold time.Duration) func(*Engine) {
	return func(e *Engine) {
		e.segmenterOpts = append(e.segmenterOpts, scan.WithThreshold(threshold))
	}
}

// WithLogger sets the logger for the engine and its segmenter
func WithLogger(logger *slog.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = logger.With(slog.String("component", "session"))
		e.segmenterOpts = append(e.segmenterOpts, scan.WithLogger(logger))
	}
}

// Engine holds the scans and axis grid derived from one sample set. It is rebuilt
// as a whole whenever the sample set changes.
type Engine struct {
	result        *scan.Result
	grid          *spectrum.AxisGrid
	logger        *slog.Logger
	segmenterOpts []func(*scan.Segmenter)
}

// NewEngine segments the samples and builds the axis grid. An empty sample set
// gives an engine without scans; its projections report ErrInsufficientData.
func NewEngine(samples []spectrum.Sample, options ...func(*Engine)) *Engine {
	e := Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	e.result = scan.NewSegmenter(e.segmenterOpts...).Segment(samples)
	if g, err := grid.BuildAxes(e.result.Scans); err == nil {
		e.grid = g
	}

	e.logger.Debug("session engine ready",
		slog.Int("samples", len(samples)),
		slog.Int("scans", len(e.result.Scans)),
		slog.Bool("multi_scan", e.result.MultiScan()))

	return &e
}

// Scans returns the segmented scans.
func (e *Engine) Scans() []spectrum.Scan {
	return e.result.Scans
}

// Frequencies returns the sorted distinct frequencies of all samples.
func (e *Engine) Frequencies() []int64 {
	return e.result.Frequencies
}

// MultiScan reports whether more than one scan was detected.
func (e *Engine) MultiScan() bool {
	return e.result.MultiScan()
}

// Grid returns the axis grid.
func (e *Engine) Grid() (*spectrum.AxisGrid, error) {
	if e.grid == nil {
		return nil, fmt.Errorf("building grid: %w", spectrum.ErrInsufficientData)
	}
	return e.grid, nil
}

// Colors maps the axis grid to colors of the scale.
func (e *Engine) Colors(scale *colormap.ColorScale) ([][]color.Color, error) {
	g, err := e.Grid()
	if err != nil {
		return nil, err
	}
	return colormap.SpectrogramColors(g, scale)
}

// Scan returns the scan selected by the view.
func (e *Engine) Scan(view *View) (spectrum.Scan, error) {
	if len(e.result.Scans) == 0 {
		return spectrum.Scan{}, fmt.Errorf("selecting scan: %w", spectrum.ErrInsufficientData)
	}
	if view.ScanIndex < 0 || view.ScanIndex >= len(e.result.Scans) {
		return spectrum.Scan{}, fmt.Errorf("selecting scan %d of %d: %w", view.ScanIndex, len(e.result.Scans), ErrNoSuchScan)
	}
	return e.result.Scans[view.ScanIndex], nil
}

// Spectrum returns the level over frequency of the selected scan.
func (e *Engine) Spectrum(view *View) ([]spectrum.LevelPoint, error) {
	sc, err := e.Scan(view)
	if err != nil {
		return nil, err
	}
	return grid.LevelVsFrequency(sc), nil
}

// TimeSeries returns the level over time of the selected frequency.
func (e *Engine) TimeSeries(view *View) ([]spectrum.LevelPoint, error) {
	return grid.LevelVsTime(e.result.Scans, view.FrequencyHz)
}

// Projection returns the series of the view's active projection.
func (e *Engine) Projection(view *View) ([]spectrum.LevelPoint, error) {
	switch view.Projection {
	case LevelVsTime:
		return e.TimeSeries(view)
	case LevelVsFrequency, "":
		return e.Spectrum(view)
	default:
		return nil, fmt.Errorf("unknown projection %q", view.Projection)
	}
}

// PickMarker adds a marker on the point at dataIndex of the active projection.
// It returns marker.ErrAtCapacity when the view already holds the maximum.
func (e *Engine) PickMarker(view *View, dataIndex int, label string) (marker.Marker, error) {
	points, err := e.Projection(view)
	if err != nil {
		return marker.Marker{}, err
	}
	if dataIndex < 0 || dataIndex >= len(points) {
		return marker.Marker{}, fmt.Errorf("picking point %d of %d: %w", dataIndex, len(points), ErrNoSuchPoint)
	}

	if view.Markers == nil {
		view.Markers = marker.NewTracker()
	}

	p := points[dataIndex]
	return view.Markers.Add(dataIndex, marker.Payload{
		Value: axisValue(view.Projection, p),
		Level: p.LevelDBm,
		Label: label,
	})
}

// ResolveMarkers returns the view's markers whose data index exists in the active
// projection, in creation order. Markers are not re-mapped: after a projection
// change a marker resolves to whatever point now sits at its index, or is dropped.
func (e *Engine) ResolveMarkers(view *View) ([]ResolvedMarker, error) {
	if view.Markers == nil || view.Markers.Len() == 0 {
		return nil, nil
	}

	points, err := e.Projection(view)
	if err != nil {
		return nil, err
	}

	var resolved []ResolvedMarker
	for _, m := range view.Markers.Markers() {
		if m.DataIndex < 0 || m.DataIndex >= len(points) {
			continue
		}
		resolved = append(resolved, ResolvedMarker{Marker: m, Point: points[m.DataIndex]})
	}
	return resolved, nil
}

// axisValue returns the x-axis value of a point: frequency in Hz for spectra and
// Unix time in seconds for time series.
func axisValue(p Projection, point spectrum.LevelPoint) float64 {
	if p == LevelVsTime {
		return float64(point.Timestamp.UnixNano()) / float64(time.Second)
	}
	return float64(point.FrequencyHz)
}
