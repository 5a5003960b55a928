// Package source loads measurement samples either from a JSON measurement result
// or from the SQLite archive.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-locator/internal/record"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
	"github.com/roman-kulish/spectrum-locator/internal/storage"
)

// Source selects where samples are read from. InputFile takes precedence over the
// archive.
type Source struct {
	InputFile     string // JSON measurement result
	DBPath        string // SQLite archive
	MeasurementID int64
	MinFrequency  *int64
	MaxFrequency  *int64
}

// Samples reads the samples of the source, applying the frequency filters.
func Samples(ctx context.Context, src Source, logger *slog.Logger) ([]spectrum.Sample, error) {
	switch {
	case src.InputFile != "":
		return readResultFile(src, logger)
	case src.DBPath != "":
		return readArchive(ctx, src, logger)
	default:
		return nil, errors.New("input file or db path is required")
	}
}

func readResultFile(src Source, logger *slog.Logger) ([]spectrum.Sample, error) {
	f, err := os.Open(src.InputFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result, err := record.Decode(f)
	if err != nil {
		return nil, err
	}
	samples, err := record.Samples(result.Samples)
	if err != nil {
		return nil, err
	}

	logger.Info("read measurement result",
		slog.String("file", src.InputFile),
		slog.String("measurementID", result.MeasurementID),
		slog.Int("samples", len(samples)))

	return Filter(samples, src.MinFrequency, src.MaxFrequency), nil
}

func readArchive(ctx context.Context, src Source, logger *slog.Logger) ([]spectrum.Sample, error) {
	if _, err := os.Stat(src.DBPath); err != nil && os.IsNotExist(err) {
		return nil, fmt.Errorf("database file '%s' does not exist: %w", src.DBPath, err)
	}

	store := storage.NewSqliteStore(src.DBPath)
	defer store.Close()

	var opts []storage.ReaderOption
	var filters []any
	switch {
	case src.MinFrequency != nil && src.MaxFrequency != nil:
		opts = append(opts, storage.WithFreqRange(*src.MinFrequency, *src.MaxFrequency))
		filters = append(filters,
			slog.String("minFreq", HumanHz(float64(*src.MinFrequency))),
			slog.String("maxFreq", HumanHz(float64(*src.MaxFrequency))))

	case src.MinFrequency != nil:
		opts = append(opts, storage.WithMinFreq(*src.MinFrequency))
		filters = append(filters, slog.String("minFreq", HumanHz(float64(*src.MinFrequency))))

	case src.MaxFrequency != nil:
		opts = append(opts, storage.WithMaxFreq(*src.MaxFrequency))
		filters = append(filters, slog.String("maxFreq", HumanHz(float64(*src.MaxFrequency))))
	}

	logger.Info("reader configuration", append(filters, slog.Int64("measurementID", src.MeasurementID))...)

	return store.Samples(ctx, src.MeasurementID, opts...)
}

// Filter keeps samples within the optional, inclusive frequency limits.
func Filter(samples []spectrum.Sample, minFreq, maxFreq *int64) []spectrum.Sample {
	if minFreq == nil && maxFreq == nil {
		return samples
	}

	filtered := make([]spectrum.Sample, 0, len(samples))
	for _, s := range samples {
		if minFreq != nil && s.FrequencyHz < *minFreq {
			continue
		}
		if maxFreq != nil && s.FrequencyHz > *maxFreq {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// HumanHz formats a frequency with an SI prefix, e.g. "433.92 MHz".
func HumanHz(hz float64) string {
	fract, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}
