package source

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
	"github.com/roman-kulish/spectrum-locator/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func int64Ptr(v int64) *int64 {
	return &v
}

func TestSamples_ResultFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "result.json")
	content := `{"samples": [
	  {"timestamp": 1715940000000, "frequency_hz": 100000000, "level_dbm": -60},
	  {"timestamp": 1715940000000, "frequency_hz": 200000000, "level_dbm": -55}
	]}`
	if err := os.WriteFile(input, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples, err := Samples(context.Background(), Source{InputFile: input}, discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}

	samples, err = Samples(context.Background(), Source{InputFile: input, MinFrequency: int64Ptr(150_000_000)}, discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 || samples[0].FrequencyHz != 200_000_000 {
		t.Errorf("unexpected filtered samples %+v", samples)
	}
}

func TestSamples_Archive(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	store := storage.NewSqliteStore(dbPath)
	id, err := store.CreateMeasurement(ctx, "m-1", "SPECTRUM", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = store.StoreSamples(ctx, id, []spectrum.Sample{
		{FrequencyHz: 100, LevelDBm: -60},
		{FrequencyHz: 200, LevelDBm: -55},
		{FrequencyHz: 300, LevelDBm: -50},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples, err := Samples(ctx, Source{DBPath: dbPath, MeasurementID: id, MaxFrequency: int64Ptr(200)}, discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(samples))
	}

	if _, err = Samples(ctx, Source{DBPath: filepath.Join(t.TempDir(), "missing.db"), MeasurementID: 1}, discard); err == nil {
		t.Error("expected error for a missing database")
	}
	if _, err = Samples(ctx, Source{}, discard); err == nil {
		t.Error("expected error without input")
	}
}

func TestFilter(t *testing.T) {
	samples := []spectrum.Sample{{FrequencyHz: 1}, {FrequencyHz: 2}, {FrequencyHz: 3}}

	testCases := []struct {
		name     string
		min, max *int64
		expected int
	}{
		{"no limits", nil, nil, 3},
		{"min", int64Ptr(2), nil, 2},
		{"max", nil, int64Ptr(2), 2},
		{"both", int64Ptr(2), int64Ptr(2), 1},
		{"empty", int64Ptr(4), nil, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Filter(samples, tc.min, tc.max); len(got) != tc.expected {
				t.Errorf("expected %d samples, got %d", tc.expected, len(got))
			}
		})
	}
}

func TestHumanHz(t *testing.T) {
	if got := HumanHz(433_920_000); got != "433.92 MHz" {
		t.Errorf("unexpected label %q", got)
	}
}
