package storage

import (
	"context"
	"fmt"

	"github.com/roman-kulish/spectrum-locator/internal/record"
)

// Archive validates a measurement result and stores it as a new measurement.
// Nothing is stored when any record fails validation.
func Archive(ctx context.Context, store Store, result *record.Result) (measurementID int64, err error) {
	samples, err := record.Samples(result.Samples)
	if err != nil {
		return 0, err
	}
	bearings, err := record.Bearings(result.DF)
	if err != nil {
		return 0, err
	}
	pairs, err := record.TimeDifferences(result.TDOA)
	if err != nil {
		return 0, err
	}

	var metadata any
	if result.Location != nil {
		metadata = map[string]any{"location": result.Location}
	}

	if measurementID, err = store.CreateMeasurement(ctx, result.MeasurementID, result.MeasurementType, metadata); err != nil {
		return 0, fmt.Errorf("creating measurement: %w", err)
	}
	if err = store.StoreSamples(ctx, measurementID, samples); err != nil {
		return 0, fmt.Errorf("archiving measurement %d: %w", measurementID, err)
	}
	if err = store.StoreBearings(ctx, measurementID, bearings); err != nil {
		return 0, fmt.Errorf("archiving measurement %d: %w", measurementID, err)
	}
	if err = store.StoreTimeDifferences(ctx, measurementID, pairs); err != nil {
		return 0, fmt.Errorf("archiving measurement %d: %w", measurementID, err)
	}
	return measurementID, nil
}
