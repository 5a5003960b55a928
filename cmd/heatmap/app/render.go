package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/source"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

const (
	dpi            = 120.0
	fontSize       = 8.0
	tickMarkLength = 5

	minLabelSpacingX = 120 // pixels between frequency labels
	minLabelSpacingY = 30  // pixels between time labels

	// Small grids are scaled up so the plot area is at least this large.
	minPlotWidth  = 600
	minPlotHeight = 300

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 90
	defaultBottomBorder = 40
	defaultRightBorder  = 50

	legendWidth = 12

	defaultTimeFormat     = "15:04:05"
	untimedLabel          = "--:--:--"
	defaultDatetimeFormat = time.DateTime
)

// BorderConfig defines the sizes of white space around the spectrum
type BorderConfig struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Space for the color legend
}

// RenderConfig holds all configuration options for spectrum visualization
type RenderConfig struct {
	// Time display configuration
	TimeFormat     string         // Format string for time display (e.g. "15:04:05")
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display

	// Visual configuration
	FontSize      float64 // Font size in points
	Scale         *colormap.ColorScale
	NoAnnotations bool // Render the plot area only

	// Border configuration
	BorderConfig BorderConfig
}

// SpectrumRenderer handles the visualization of radio spectrum data
type SpectrumRenderer struct {
	config RenderConfig
}

// NewSpectrumRenderer creates a new spectrum renderer with the given configuration
func NewSpectrumRenderer(config RenderConfig) (*SpectrumRenderer, error) {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Scale == nil {
		config.Scale = colormap.NewColorScale(colormap.Enhanced)
	}

	switch {
	case config.NoAnnotations:
		config.BorderConfig = BorderConfig{}
	default:
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &SpectrumRenderer{config: config}, nil
}

// cellSize returns the pixel size of one grid cell.
func cellSize(spec *SpectrumData) (w, h int) {
	w, h = 1, 1
	if spec.Width > 0 && spec.Width < minPlotWidth {
		w = (minPlotWidth + spec.Width - 1) / spec.Width
	}
	if spec.Height > 0 && spec.Height < minPlotHeight {
		h = (minPlotHeight + spec.Height - 1) / spec.Height
	}
	return w, h
}

// Render creates an image of the spectrum data with annotations. Rows are scans,
// oldest at the top; columns are frequencies, lowest on the left.
func (r *SpectrumRenderer) Render(spec *SpectrumData) (*image.RGBA, error) {
	if spec.Width == 0 || spec.Height == 0 {
		return nil, fmt.Errorf("rendering spectrum: %w", spectrum.ErrInsufficientData)
	}

	cw, ch := cellSize(spec)
	borders := r.config.BorderConfig

	fullWidth := spec.Width*cw + borders.Left + borders.Right
	fullHeight := spec.Height*ch + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plotArea := image.Rect(
		borders.Left,
		borders.Top,
		borders.Left+spec.Width*cw,
		borders.Top+spec.Height*ch,
	)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			TimeFormat:     r.config.TimeFormat,
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontSize:       r.config.FontSize,
			Borders:        borders,
			CellWidth:      cw,
			CellHeight:     ch,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, spec); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
		r.renderLegend(img, plotArea)
	}

	r.renderSpectrum(img, plotArea, spec, cw, ch)

	return img, nil
}

// renderSpectrum fills every cell. Cells without data get the scale's no-data
// color, transparent unless configured otherwise, so gaps never read as a level.
func (r *SpectrumRenderer) renderSpectrum(img *image.RGBA, area image.Rectangle, spec *SpectrumData, cw, ch int) {
	for y, row := range spec.Levels {
		for x, level := range row {
			cell := image.Rect(
				area.Min.X+x*cw,
				area.Min.Y+y*ch,
				area.Min.X+(x+1)*cw,
				area.Min.Y+(y+1)*ch,
			)
			draw.Draw(img, cell, image.NewUniform(r.config.Scale.Map(level, spec.Bounds)), image.Point{}, draw.Src)
		}
	}
}

// renderLegend draws the color scale next to the plot, maximum level at the top.
func (r *SpectrumRenderer) renderLegend(img *image.RGBA, area image.Rectangle) {
	x0 := area.Max.X + (r.config.BorderConfig.Right-legendWidth)/2
	height := area.Dy()
	for y := 0; y < height; y++ {
		t := 1.0
		if height > 1 {
			t = 1 - float64(y)/float64(height-1)
		}
		c := r.config.Scale.At(t)
		for x := x0; x < x0+legendWidth; x++ {
			img.Set(x, area.Min.Y+y, c)
		}
	}
}

// Internal annotator implementation
type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
	CellWidth      int
	CellHeight     int
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, spec *SpectrumData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *SpectrumData) error
	}{
		{"drawing frequency scale", a.drawFrequencyScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, spec); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

// drawFrequencyScale labels grid columns. Columns are not evenly spaced in
// frequency, so labels name the frequency of the column they sit on.
func (a *annotator) drawFrequencyScale(img *image.RGBA, spec *SpectrumData) error {
	textY := a.config.Borders.Top - tickMarkLength - a.fontHeight()/2
	stride := labelStride(a.config.CellWidth, minLabelSpacingX)

	for col := 0; col < spec.Width; col += stride {
		x := a.config.Borders.Left + col*a.config.CellWidth + a.config.CellWidth/2

		for y := a.config.Borders.Top - tickMarkLength; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := source.HumanHz(float64(spec.Frequencies[col]))
		width := font.MeasureString(a.fontFace, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(max(0, x-width/2), textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

// drawTimeScale labels scan rows with their timestamps.
func (a *annotator) drawTimeScale(img *image.RGBA, spec *SpectrumData) error {
	metrics := a.fontFace.Metrics()
	stride := labelStride(a.config.CellHeight, minLabelSpacingY)

	for row := 0; row < spec.Height; row += stride {
		y := a.config.Borders.Top + row*a.config.CellHeight + a.config.CellHeight/2

		for x := a.config.Borders.Left - tickMarkLength; x < a.config.Borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		label := untimedLabel
		if ts := spec.Timestamps[row]; !ts.IsZero() {
			label = ts.In(a.config.Location).Format(a.config.TimeFormat)
		}
		if _, err := a.context.DrawString(label, freetype.Pt(5, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, spec *SpectrumData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Freq: %s - %s", source.HumanHz(spec.FrequencyMin), source.HumanHz(spec.FrequencyMax)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		spec.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		spec.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Level: %0.1f .. %0.1f dBm", spec.Bounds.Min, spec.Bounds.Max))

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(5, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// checkerSize is the square size of the pattern that stands in for transparent
// cells in formats without an alpha channel.
const checkerSize = 4

// checkerboard is an infinite light gray checker pattern.
type checkerboard struct{}

func (checkerboard) ColorModel() color.Model { return color.RGBAModel }

func (checkerboard) Bounds() image.Rectangle {
	return image.Rect(-1e9, -1e9, 1e9, 1e9)
}

func (checkerboard) At(x, y int) color.Color {
	if (x/checkerSize+y/checkerSize)%2 == 0 {
		return color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	}
	return color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
}

// Flatten composites img over a checker pattern, so transparent no-data cells stay
// visibly absent in formats that drop the alpha channel.
func Flatten(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), checkerboard{}, img.Bounds().Min, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}

// labelStride returns how many cells to skip between labels so that labels are at
// least minSpacing pixels apart.
func labelStride(cellPx, minSpacing int) int {
	if cellPx <= 0 {
		cellPx = 1
	}
	return max(1, (minSpacing+cellPx-1)/cellPx)
}
