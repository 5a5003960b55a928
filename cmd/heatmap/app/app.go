package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/colormap"
	"github.com/roman-kulish/spectrum-locator/internal/grid"
	"github.com/roman-kulish/spectrum-locator/internal/session"
	"github.com/roman-kulish/spectrum-locator/internal/source"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	samples, err := source.Samples(ctx, source.Source{
		InputFile:     config.InputFile,
		DBPath:        config.DBPath,
		MeasurementID: config.MeasurementID,
		MinFrequency:  config.MinFrequency,
		MaxFrequency:  config.MaxFrequency,
	}, logger)
	if err != nil {
		return err
	}

	engine := session.NewEngine(samples,
		session.WithThreshold(time.Duration(config.Settings.Scan.Threshold)),
		session.WithLogger(logger))

	g, err := engine.Grid()
	if err != nil {
		return fmt.Errorf("building grid: %w", err)
	}

	if stats, ok := grid.Stats(g); ok {
		logger.Debug("grid coverage",
			slog.Int("cells", stats.Count),
			slog.String("coverage", fmt.Sprintf("%0.1f%%", stats.Coverage()*100)))
	}

	bounds := Bounds(g, config.Settings.Display, config.MinPower, config.MaxPower)
	spec := NewSpectrumData(g, bounds)

	logger.Info("finished reading samples",
		slog.Group("stats",
			slog.Int("samples", len(samples)),
			slog.Int("scans", len(engine.Scans())),
			slog.String("minTimestamp", spec.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("maxTimestamp", spec.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minFreq", source.HumanHz(spec.FrequencyMin)),
			slog.String("maxFreq", source.HumanHz(spec.FrequencyMax)),
			slog.String("minPower", fmt.Sprintf("%0.2fdBm", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdBm", bounds.Max)),
		))

	renderer, err := NewSpectrumRenderer(RenderConfig{
		Location:      config.TimeZone,
		Scale:         colormap.NewColorScale(config.Theme),
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating spectrum renderer: %w", err)
	}

	logger.Info("rendering spectrum",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("columns", spec.Width),
			slog.Int("rows", spec.Height),
		))

	img, err := renderer.Render(spec)
	if err != nil {
		return fmt.Errorf("rendering spectrum: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)
	case ImageJPEG:
		err = jpeg.Encode(out, Flatten(img), &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
