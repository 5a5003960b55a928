package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/config"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

var baseTime = time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 {
	return &v
}

func testGrid() *spectrum.AxisGrid {
	return &spectrum.AxisGrid{
		Frequencies: []int64{100_000_000, 200_000_000},
		Timestamps:  []time.Time{baseTime, baseTime.Add(1050 * time.Millisecond)},
		Levels: [][]*float64{
			{ptr(-60), ptr(-55)},
			{ptr(-62), nil},
		},
	}
}

func TestNewConfigFromArgs(t *testing.T) {
	c, err := NewConfigFromArgs([]string{"-i", "result.json", "-o", "out", "-f", "JPEG", "-min-freq", "100", "-theme", "thermal", "-tz", "UTC"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.OutputFile != "out.jpeg" || c.Format != ImageJPEG {
		t.Errorf("unexpected output %q / %q", c.OutputFile, c.Format)
	}
	if c.MinFrequency == nil || *c.MinFrequency != 100 || c.MaxFrequency != nil {
		t.Errorf("unexpected frequency filters %v / %v", c.MinFrequency, c.MaxFrequency)
	}
	if c.MinPower != nil || c.MaxPower != nil {
		t.Error("power limits must stay unset when the flags are absent")
	}
	if c.Theme != colormap.Thermal || c.TimeZone != time.UTC {
		t.Errorf("unexpected theme %q or time zone %s", c.Theme, c.TimeZone)
	}

	testCases := []struct {
		name string
		args []string
	}{
		{"no input", []string{"-o", "out"}},
		{"no output", []string{"-i", "result.json"}},
		{"bad format", []string{"-i", "result.json", "-o", "out", "-f", "gif"}},
		{"inverted power", []string{"-i", "result.json", "-o", "out", "-min-power", "-20", "-max-power", "-80"}},
		{"bad theme", []string{"-i", "result.json", "-o", "out", "-theme", "sepia"}},
		{"bad time zone", []string{"-i", "result.json", "-o", "out", "-tz", "Mars/Olympus"}},
		{"missing config", []string{"-i", "result.json", "-o", "out", "-config", "/nonexistent/config.yaml"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewConfigFromArgs(tc.args, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBounds(t *testing.T) {
	g := testGrid()

	b := Bounds(g, config.DisplayConfig{}, nil, nil)
	if b.Min != -62 || b.Max != -55 {
		t.Errorf("expected observed range [-62, -55], got [%v, %v]", b.Min, b.Max)
	}

	b = Bounds(g, config.DisplayConfig{}, ptr(-100), ptr(-10))
	if b.Min != -100 || b.Max != -10 {
		t.Errorf("manual limits must win, got [%v, %v]", b.Min, b.Max)
	}

	// Too few levels for percentiles.
	if b = Bounds(g, config.DisplayConfig{Percentile: true}, nil, nil); b != colormap.DefaultBounds() {
		t.Errorf("expected default bounds, got %+v", b)
	}
	if b = Bounds(g, config.DisplayConfig{Percentile: true, Smoothing: 0.3}, nil, ptr(-10)); b.Max != -10 || b.Min >= b.Max {
		t.Errorf("unexpected smoothed bounds %+v", b)
	}
}

func TestSpectrumRenderer_Render(t *testing.T) {
	g := testGrid()
	spec := NewSpectrumData(g, Bounds(g, config.DisplayConfig{}, nil, nil))
	scale := colormap.NewColorScale(colormap.Grayscale, colormap.WithNoDataColor(color.RGBA{R: 0xff, A: 0xff}))

	r, err := NewSpectrumRenderer(RenderConfig{Location: time.UTC, Scale: scale, NoAnnotations: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := r.Render(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cw, ch := cellSize(spec)
	if img.Bounds().Dx() != 2*cw || img.Bounds().Dy() != 2*ch {
		t.Fatalf("unexpected image size %v", img.Bounds())
	}

	cells := []struct {
		x, y     int
		expected color.Color
	}{
		{0, 0, scale.Map(ptr(-60), spec.Bounds)},
		{1, 0, scale.At(1)},
		{0, 1, scale.At(0)},
		{1, 1, scale.NoData()},
	}
	for _, c := range cells {
		px := img.At(c.x*cw+cw/2, c.y*ch+ch/2)
		if !sameColor(px, c.expected) {
			t.Errorf("cell (%d, %d): expected %v, got %v", c.x, c.y, c.expected, px)
		}
	}

	annotated, err := NewSpectrumRenderer(RenderConfig{Location: time.UTC, Scale: scale})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err = annotated.Render(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := 2*cw + defaultLeftBorder + defaultRightBorder; img.Bounds().Dx() != want {
		t.Errorf("expected width %d, got %d", want, img.Bounds().Dx())
	}

	if _, err = annotated.Render(&SpectrumData{}); err == nil {
		t.Error("expected error for an empty grid")
	}
}

func TestSpectrumRenderer_NoDataCells(t *testing.T) {
	g := testGrid()
	spec := NewSpectrumData(g, Bounds(g, config.DisplayConfig{}, nil, nil))

	for _, theme := range colormap.Themes() {
		t.Run(string(theme), func(t *testing.T) {
			scale := colormap.NewColorScale(theme)
			r, err := NewSpectrumRenderer(RenderConfig{Location: time.UTC, Scale: scale, NoAnnotations: true})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			img, err := r.Render(spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			cw, ch := cellSize(spec)
			gap := img.At(cw+cw/2, ch+ch/2)
			if _, _, _, a := gap.RGBA(); a != 0 {
				t.Errorf("expected a transparent cell without data, got %v", gap)
			}
			minimum := img.At(cw/2, ch+ch/2)
			if sameColor(gap, minimum) {
				t.Error("cell without data is drawn like the minimum level")
			}

			flat := Flatten(img)
			if _, _, _, a := flat.At(cw+cw/2, ch+ch/2).RGBA(); a != 0xffff {
				t.Error("flattened image must be opaque")
			}
			if !sameColor(flat.At(cw/2, ch+ch/2), minimum) {
				t.Error("flattening must not change cells with data")
			}
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "result.json")
	content := `{
	  "samples": [
	    {"timestamp": 1715940000000, "frequency_hz": 100000000, "level_dbm": -60},
	    {"timestamp": 1715940000000, "frequency_hz": 200000000, "level_dbm": -55},
	    {"timestamp": 1715940001050, "frequency_hz": 100000000, "level_dbm": -62}
	  ]
	}`
	if err := os.WriteFile(input, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := NewConfigFromArgs([]string{"-i", input, "-o", filepath.Join(dir, "heatmap"), "-tz", "UTC"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err = Run(context.Background(), c, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := os.ReadFile(c.OutputFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(p))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds() == (image.Rectangle{}) {
		t.Error("expected a non-empty image")
	}
}

func TestNewSpectrumData_Untimestamped(t *testing.T) {
	g := &spectrum.AxisGrid{
		Frequencies: []int64{100},
		Timestamps:  []time.Time{baseTime, baseTime.Add(time.Second), {}},
		Levels:      [][]*float64{{ptr(-60)}, {ptr(-61)}, {ptr(-62)}},
	}
	spec := NewSpectrumData(g, colormap.DefaultBounds())
	if spec.Height != 3 {
		t.Fatalf("expected 3 rows, got %d", spec.Height)
	}
	if !spec.TimestampStart.Equal(baseTime) || !spec.TimestampEnd.Equal(baseTime.Add(time.Second)) {
		t.Errorf("time range must cover timed rows only, got %v - %v", spec.TimestampStart, spec.TimestampEnd)
	}

	r, err := NewSpectrumRenderer(RenderConfig{Location: time.UTC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err = r.Render(spec); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLabelStride(t *testing.T) {
	testCases := []struct {
		cell, spacing, expected int
	}{
		{1, 120, 120},
		{300, 120, 1},
		{50, 120, 3},
		{0, 30, 30},
	}
	for _, tc := range testCases {
		if got := labelStride(tc.cell, tc.spacing); got != tc.expected {
			t.Errorf("labelStride(%d, %d): expected %d, got %d", tc.cell, tc.spacing, tc.expected, got)
		}
	}
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}
