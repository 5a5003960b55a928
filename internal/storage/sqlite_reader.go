package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// SampleReader provides an iterator-based interface for reading archived samples
// with optional time and frequency filtering.
type SampleReader interface {
	// Measurement returns metadata about the measurement this reader is accessing.
	Measurement() *Measurement

	// Next advances the iterator and returns true if there is another sample
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current sample in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() spectrum.Sample

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}

// ReaderOption configures a SampleReader with specific filtering criteria.
type ReaderOption func(*SqliteSampleReader)

// WithMinFreq sets the minimum frequency filter for the sample reader.
// Samples with frequencies below this value will be excluded.
func WithMinFreq(f int64) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.minFreq = &f
	}
}

// WithMaxFreq sets the maximum frequency filter for the sample reader.
// Samples with frequencies above this value will be excluded.
func WithMaxFreq(f int64) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.maxFreq = &f
	}
}

// WithFreqRange sets both minimum and maximum frequency filters.
func WithFreqRange(minFreq, maxFreq int64) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.minFreq = &minFreq
		r.maxFreq = &maxFreq
	}
}

// WithTimeRange sets both start and end time filters. Samples without a
// timestamp are excluded once a time filter is set.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// ReadSamples creates a new SampleReader over the samples of a measurement. Samples
// are returned in the order they were stored.
//
// The returned reader must be closed after use to release database resources.
// Each reader instance should only be used from a single goroutine.
//
// Returns ErrNotFound if the measurement does not exist.
func (s *SqliteStore) ReadSamples(ctx context.Context, measurementID int64, opts ...ReaderOption) (*SqliteSampleReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteSampleReader(ctx, s, db, measurementID, opts...)
}

// Samples reads all samples of a measurement.
func (s *SqliteStore) Samples(ctx context.Context, measurementID int64, opts ...ReaderOption) (samples []spectrum.Sample, err error) {
	r, err := s.ReadSamples(ctx, measurementID, opts...)
	if err != nil {
		return nil, err
	}
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		samples = append(samples, r.Current())
	}
	if err = r.Error(); err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	return samples, nil
}

// Bearings reads the DF bearings of a measurement in the order they were stored.
func (s *SqliteStore) Bearings(ctx context.Context, measurementID int64) ([]locate.BearingObservation, error) {
	return queryAll(ctx, s, selectBearingsSQL, measurementID, func(rows *sql.Rows) (locate.BearingObservation, error) {
		var data bearingData
		err := rows.Scan(&data.StationName, &data.Latitude, &data.Longitude, &data.Bearing, &data.SignalLevel, &data.Confidence)
		return data.toObservation(), err
	})
}

// TimeDifferences reads the TDOA pairs of a measurement in the order they were stored.
func (s *SqliteStore) TimeDifferences(ctx context.Context, measurementID int64) ([]locate.TDOAObservation, error) {
	return queryAll(ctx, s, selectTimeDifferencesSQL, measurementID, func(rows *sql.Rows) (locate.TDOAObservation, error) {
		var data timeDifferenceData
		err := rows.Scan(
			&data.Station1,
			&data.Station2,
			&data.Latitude1,
			&data.Longitude1,
			&data.Latitude2,
			&data.Longitude2,
			&data.TimeDiff,
			&data.DistanceDiff,
			&data.Confidence,
		)
		return data.toObservation(), err
	})
}

// Estimates reads the position estimates of a measurement, oldest first.
func (s *SqliteStore) Estimates(ctx context.Context, measurementID int64) ([]*locate.PositionEstimate, error) {
	return queryAll(ctx, s, selectEstimatesSQL, measurementID, func(rows *sql.Rows) (*locate.PositionEstimate, error) {
		var data estimateData
		err := rows.Scan(&data.Method, &data.Solver, &data.Latitude, &data.Longitude, &data.Accuracy, &data.Contributing, &data.LowConfidence)
		return data.toEstimate(), err
	})
}

func queryAll[T any](ctx context.Context, s *SqliteStore, query string, measurementID int64, scan func(*sql.Rows) (T, error)) (items []T, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, measurementID)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var item T
		if item, err = scan(rows); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return items, nil
}

func newSqliteSampleReader(ctx context.Context, s *SqliteStore, db *sql.DB, measurementID int64, opts ...ReaderOption) (*SqliteSampleReader, error) {
	sr := &SqliteSampleReader{
		db:            db,
		store:         s,
		measurementID: measurementID,
	}
	for _, opt := range opts {
		opt(sr)
	}
	if err := sr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

// SqliteSampleReader implements SampleReader for SQLite database backend.
type SqliteSampleReader struct {
	db    *sql.DB
	store *SqliteStore

	measurementID int64
	measurement   *Measurement

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	minFreq   *int64     // Optional minimum frequency filter
	maxFreq   *int64     // Optional maximum frequency filter

	current spectrum.Sample
	rows    *sql.Rows
	err     error
}

var _ SampleReader = (*SqliteSampleReader)(nil)

func (sr *SqliteSampleReader) init(ctx context.Context) error {
	if sr.db == nil {
		return errors.New("database connection required")
	}
	if sr.measurementID <= 0 {
		return errors.New("measurement ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading measurement", fn: sr.loadMeasurement},
		{msg: "validating filters", fn: sr.validateFilters},
		{msg: "initializing query", fn: sr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (sr *SqliteSampleReader) loadMeasurement(ctx context.Context) (err error) {
	sr.measurement, err = sr.store.Measurement(ctx, sr.measurementID)
	return err
}

func (sr *SqliteSampleReader) validateFilters(context.Context) error {
	if sr.startTime != nil && sr.endTime != nil && sr.startTime.After(*sr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", sr.startTime, sr.endTime)
	}
	if sr.minFreq != nil && sr.maxFreq != nil && *sr.minFreq > *sr.maxFreq {
		return fmt.Errorf("min frequency %d is greater than max frequency %d", *sr.minFreq, *sr.maxFreq)
	}
	return nil
}

func (sr *SqliteSampleReader) initQuery(ctx context.Context) (err error) {
	var sb strings.Builder
	sb.WriteString(selectSamplesSQL)

	args := []any{sr.measurementID}

	// Timestamps are stored in UTC, so the driver's text encoding sorts chronologically.
	if sr.startTime != nil {
		sb.WriteString("\n  AND timestamp >= ?")
		args = append(args, sr.startTime.UTC())
	}
	if sr.endTime != nil {
		sb.WriteString("\n  AND timestamp <= ?")
		args = append(args, sr.endTime.UTC())
	}
	if sr.minFreq != nil {
		sb.WriteString("\n  AND frequency >= ?")
		args = append(args, *sr.minFreq)
	}
	if sr.maxFreq != nil {
		sb.WriteString("\n  AND frequency <= ?")
		args = append(args, *sr.maxFreq)
	}
	sb.WriteString("\nORDER BY id")

	if sr.rows, err = sr.db.QueryContext(ctx, sb.String(), args...); err != nil {
		return err
	}
	return nil
}

func (sr *SqliteSampleReader) Measurement() *Measurement {
	return sr.measurement
}

func (sr *SqliteSampleReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		sr.err = ctx.Err()
		return false
	default:
	}

	if !sr.rows.Next() {
		return false
	}

	var data sampleData
	if err := sr.rows.Scan(&data.Timestamp, &data.Frequency, &data.Level, &data.Bearing, &data.Unit); err != nil {
		sr.err = fmt.Errorf("scanning sample: %w", err)
		return false
	}

	sr.current = data.toSample()
	return true
}

func (sr *SqliteSampleReader) Current() spectrum.Sample {
	return sr.current
}

func (sr *SqliteSampleReader) Error() error {
	if sr.err != nil {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

func (sr *SqliteSampleReader) Close() error {
	if sr.rows != nil {
		err := sr.rows.Close()
		sr.rows = nil
		return err
	}
	return nil
}
