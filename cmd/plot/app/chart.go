package app

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/roman-kulish/spectrum-locator/internal/session"
	"github.com/roman-kulish/spectrum-locator/internal/source"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// ChartConfig describes one projection chart.
type ChartConfig struct {
	Title      string
	Projection session.Projection
	Width      int
	Height     int
	Location   *time.Location
}

// pointStyle returns a style that renders points only (no connecting line)
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    5,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 1.5,
		StrokeColor: col,
	}
}

// NewChart builds a level chart of the projection points. Markers are drawn as
// dots with a label.
func NewChart(cfg ChartConfig, points []spectrum.LevelPoint, markers []session.ResolvedMarker) (*chart.Chart, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("building chart: %w", spectrum.ErrInsufficientData)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	levels := make([]float64, len(points))
	xs := make([]float64, len(points))
	for i, p := range points {
		levels[i] = p.LevelDBm
		xs[i] = xValue(cfg.Projection, p)
	}

	markerXs := make([]float64, len(markers))
	markerLevels := make([]float64, len(markers))
	annotations := make([]chart.Value2, len(markers))
	for i, m := range markers {
		markerXs[i] = xValue(cfg.Projection, m.Point)
		markerLevels[i] = m.Point.LevelDBm
		annotations[i] = chart.Value2{
			XValue: markerXs[i],
			YValue: markerLevels[i],
			Label:  fmt.Sprintf("%s %0.1f dBm", m.Label, m.Point.LevelDBm),
		}
	}

	var series []chart.Series
	xAxis := chart.XAxis{Range: paddedRange(xs, xPadding(cfg.Projection))}

	switch cfg.Projection {
	case session.LevelVsTime:
		times := make([]time.Time, len(points))
		for i, p := range points {
			times[i] = p.Timestamp
		}
		series = append(series, chart.TimeSeries{Name: "Level", XValues: times, YValues: levels, Style: lineStyle(chart.ColorBlue)})
		xAxis.Name = "Time"
		xAxis.ValueFormatter = timeFormatter(cfg.Location)

	default:
		series = append(series, chart.ContinuousSeries{Name: "Level", XValues: xs, YValues: levels, Style: lineStyle(chart.ColorBlue)})
		xAxis.Name = "Frequency"
		xAxis.ValueFormatter = frequencyFormatter
	}

	if len(markers) > 0 {
		series = append(series,
			chart.ContinuousSeries{Name: "Markers", XValues: markerXs, YValues: markerLevels, Style: pointStyle(chart.ColorRed)},
			chart.AnnotationSeries{Annotations: annotations},
		)
	}

	ch := chart.Chart{
		Title:      cfg.Title,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis: chart.YAxis{
			Name:           "Level (dBm)",
			Range:          paddedRange(levels, 1),
			ValueFormatter: levelFormatter,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return &ch, nil
}

// Render writes the chart as PNG.
func Render(w io.Writer, ch *chart.Chart) error {
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// xValue returns the chart x coordinate of a point. Time values use the chart's
// nanosecond encoding.
func xValue(p session.Projection, point spectrum.LevelPoint) float64 {
	if p == session.LevelVsTime {
		return chart.TimeToFloat64(point.Timestamp)
	}
	return float64(point.FrequencyHz)
}

func xPadding(p session.Projection) float64 {
	if p == session.LevelVsTime {
		return float64(time.Second)
	}
	return 1_000 // Hz
}

// paddedRange returns the value range, widened by pad on both sides when all
// values are equal. The chart refuses to render a zero range.
func paddedRange(values []float64, pad float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo == 0 {
		lo -= pad
		hi += pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func frequencyFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return source.HumanHz(f)
	}
	return ""
}

func levelFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%0.1f", f)
	}
	return ""
}

func timeFormatter(loc *time.Location) chart.ValueFormatter {
	return func(v interface{}) string {
		switch t := v.(type) {
		case float64:
			return time.Unix(0, int64(t)).In(loc).Format(time.TimeOnly)
		case time.Time:
			return t.In(loc).Format(time.TimeOnly)
		}
		return ""
	}
}
