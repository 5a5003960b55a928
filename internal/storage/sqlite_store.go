package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// ErrNotFound indicates that the requested measurement does not exist.
var ErrNotFound = errors.New("not found")

// maxBatchRows keeps multi-row inserts below SQLite's bound parameter limit.
const maxBatchRows = 1000

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store backed by the SQLite file at dbPath. Connections
// are opened, and the schema initialized, on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateMeasurement(ctx context.Context, externalID, measurementType string, metadata any) (measurementID int64, err error) {
	var metadataData sql.NullString

	if metadata != nil {
		switch v := metadata.(type) {
		case string:
			metadataData.Valid = true
			metadataData.String = v

		case []byte:
			metadataData.Valid = true
			metadataData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(metadata); err != nil {
				err = fmt.Errorf("marshaling metadata: %w", err)
				return
			}

			metadataData.Valid = true
			metadataData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertMeasurementSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx,
		sql.NullString{String: externalID, Valid: externalID != ""},
		sql.NullString{String: measurementType, Valid: measurementType != ""},
		metadataData,
	)
	if err != nil {
		err = fmt.Errorf("inserting measurement: %w", err)
		return
	}

	measurementID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting measurement ID: %w", err)
	}
	return
}

func (s *SqliteStore) Measurement(ctx context.Context, id int64) (measurement *Measurement, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectMeasurementSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data measurementData
	err = stmt.QueryRowContext(ctx, id).Scan(&data.ID, &data.ExternalID, &data.Type, &data.CreatedAt, &data.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("measurement %d: %w", id, ErrNotFound)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning measurement: %w", err)
		return
	}

	return data.toMeasurement(), nil
}

func (s *SqliteStore) Measurements(ctx context.Context) (measurements []*Measurement, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectMeasurementsSQL)
	if err != nil {
		err = fmt.Errorf("querying measurements: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data measurementData
		if err = rows.Scan(&data.ID, &data.ExternalID, &data.Type, &data.CreatedAt, &data.Metadata); err != nil {
			err = fmt.Errorf("scanning measurement: %w", err)
			return
		}
		measurements = append(measurements, data.toMeasurement())
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreSamples(ctx context.Context, measurementID int64, samples []spectrum.Sample) (err error) {
	if len(samples) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	// Build batch insert queries
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?)"

	for start := 0; start < len(samples); start += maxBatchRows {
		batch := samples[start:min(start+maxBatchRows, len(samples))]

		values := make([]interface{}, 0, len(batch)*6)

		var sb strings.Builder
		sb.WriteString(insertSampleSQL)

		for i, sample := range batch {
			data := toSampleData(measurementID, sample)
			values = append(values,
				data.MeasurementID,
				data.Timestamp,
				data.Frequency,
				data.Level,
				data.Bearing,
				data.Unit,
			)

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting samples: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// insertEach executes the prepared insert query once per item inside one transaction.
func insertEach[T any](ctx context.Context, db *sql.DB, query string, items []T, args func(T) []any) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for i, item := range items {
		if _, err = stmt.ExecContext(ctx, args(item)...); err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) StoreBearings(ctx context.Context, measurementID int64, observations []locate.BearingObservation) error {
	if len(observations) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	err = insertEach(ctx, db, insertBearingSQL, observations, func(o locate.BearingObservation) []any {
		data := toBearingData(measurementID, o)
		return []any{
			data.MeasurementID,
			data.StationName,
			data.Latitude,
			data.Longitude,
			data.Bearing,
			data.SignalLevel,
			data.Confidence,
		}
	})
	if err != nil {
		return fmt.Errorf("storing bearings: %w", err)
	}
	return nil
}

func (s *SqliteStore) StoreTimeDifferences(ctx context.Context, measurementID int64, observations []locate.TDOAObservation) error {
	if len(observations) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	err = insertEach(ctx, db, insertTimeDifferenceSQL, observations, func(o locate.TDOAObservation) []any {
		data := toTimeDifferenceData(measurementID, o)
		return []any{
			data.MeasurementID,
			data.Station1,
			data.Station2,
			data.Latitude1,
			data.Longitude1,
			data.Latitude2,
			data.Longitude2,
			data.TimeDiff,
			data.DistanceDiff,
			data.Confidence,
		}
	})
	if err != nil {
		return fmt.Errorf("storing time differences: %w", err)
	}
	return nil
}

func (s *SqliteStore) StoreEstimate(ctx context.Context, measurementID int64, estimate *locate.PositionEstimate) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertEstimateSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	data := toEstimateData(measurementID, estimate)

	_, err = stmt.ExecContext(
		ctx,
		data.MeasurementID,
		data.Method,
		data.Solver,
		data.Latitude,
		data.Longitude,
		data.Accuracy,
		data.Contributing,
		data.LowConfidence,
	)
	if err != nil {
		return fmt.Errorf("inserting estimate: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
