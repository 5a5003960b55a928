package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// Store provides an interface for archiving measurement results: spectrum samples,
// DF bearings, TDOA pairs and the position estimates derived from them.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateMeasurement registers a new measurement and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - externalID: Identifier assigned by the measurement service, may be empty
	//   - measurementType: Measurement type (e.g., "DF", "TDOA"), may be empty
	//   - metadata: Optional metadata. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - measurementID: Unique identifier for the created measurement
	//   - error: If creation fails or context is cancelled
	CreateMeasurement(ctx context.Context, externalID, measurementType string, metadata any) (measurementID int64, err error)

	// Measurement retrieves a specific measurement by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique measurement identifier
	//
	// Returns:
	//   - measurement: Pointer to measurement data
	//   - error: ErrNotFound if there is no such measurement, or if retrieval fails
	Measurement(ctx context.Context, id int64) (measurement *Measurement, err error)

	// Measurements returns all archived measurements ordered by creation time.
	Measurements(ctx context.Context) (measurements []*Measurement, err error)

	// StoreSamples saves spectrum samples of a measurement. All samples are stored
	// in a single atomic transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - measurementID: ID of the measurement the samples belong to
	//   - samples: Samples in arrival order
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreSamples(ctx context.Context, measurementID int64, samples []spectrum.Sample) error

	// StoreBearings saves DF bearings of a measurement in a single transaction.
	StoreBearings(ctx context.Context, measurementID int64, observations []locate.BearingObservation) error

	// StoreTimeDifferences saves TDOA pairs of a measurement in a single transaction.
	StoreTimeDifferences(ctx context.Context, measurementID int64, observations []locate.TDOAObservation) error

	// StoreEstimate saves a position estimate computed for a measurement.
	StoreEstimate(ctx context.Context, measurementID int64, estimate *locate.PositionEstimate) error

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	//
	// Returns:
	//   - error: If closing fails or some resources cannot be released
	Close() error
}
