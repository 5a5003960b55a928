package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/session"
	"github.com/roman-kulish/spectrum-locator/internal/source"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	samples, err := source.Samples(ctx, source.Source{
		InputFile:     config.InputFile,
		DBPath:        config.DBPath,
		MeasurementID: config.MeasurementID,
	}, logger)
	if err != nil {
		return err
	}

	engine := session.NewEngine(samples,
		session.WithThreshold(time.Duration(config.Settings.Scan.Threshold)),
		session.WithLogger(logger))

	view := session.NewView()
	view.SetProjection(config.Projection)
	view.ScanIndex = config.ScanIndex
	view.FrequencyHz = config.FrequencyHz

	points, err := engine.Projection(view)
	if err != nil {
		return fmt.Errorf("projecting samples: %w", err)
	}

	for _, index := range config.Markers {
		if _, err = engine.PickMarker(view, index, ""); err != nil {
			return fmt.Errorf("placing marker: %w", err)
		}
	}
	markers, err := engine.ResolveMarkers(view)
	if err != nil {
		return fmt.Errorf("resolving markers: %w", err)
	}

	for _, m := range markers {
		logger.Info("marker",
			slog.String("label", m.Label),
			slog.Int("index", m.DataIndex),
			slog.String("frequency", source.HumanHz(float64(m.Point.FrequencyHz))),
			slog.String("timestamp", m.Point.Timestamp.In(config.TimeZone).Format(time.DateTime)),
			slog.Float64("level", m.Point.LevelDBm))
	}

	ch, err := NewChart(ChartConfig{
		Title:      title(engine, view),
		Projection: config.Projection,
		Width:      config.Width,
		Height:     config.Height,
		Location:   config.TimeZone,
	}, points, markers)
	if err != nil {
		return err
	}

	logger.Info("rendering chart",
		slog.String("destination", config.OutputFile),
		slog.String("projection", string(config.Projection)),
		slog.Int("points", len(points)),
		slog.Int("scans", len(engine.Scans())))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return Render(out, ch)
}

func title(engine *session.Engine, view *session.View) string {
	if view.Projection == session.LevelVsTime {
		freq := engine.Frequencies()[0]
		if view.FrequencyHz != nil {
			freq = *view.FrequencyHz
		}
		return fmt.Sprintf("Level at %s", source.HumanHz(float64(freq)))
	}

	s, err := engine.Scan(view)
	if err != nil || s.Timestamp.IsZero() {
		return fmt.Sprintf("Spectrum of scan %d", view.ScanIndex+1)
	}
	return fmt.Sprintf("Spectrum of scan %d (%s)", view.ScanIndex+1, s.Timestamp.UTC().Format(time.DateTime))
}
