package storage

import (
	"database/sql"
	"time"
)

// Measurement is an archived measurement result
type Measurement struct {
	ID         int64     `json:"id"`
	ExternalID *string   `json:"externalId,omitempty"` // Identifier assigned by the measurement service
	Type       *string   `json:"type,omitempty"`       // e.g. "DF", "TDOA", "SPECTRUM"
	CreatedAt  time.Time `json:"createdAt"`
	Metadata   *string   `json:"metadata,omitempty"` // JSON
}

type measurementData struct {
	ID         int64
	ExternalID sql.NullString
	Type       sql.NullString
	CreatedAt  time.Time
	Metadata   sql.NullString
}

type sampleData struct {
	MeasurementID int64
	Timestamp     sql.NullTime
	Frequency     int64
	Level         float64
	Bearing       sql.NullFloat64
	Unit          sql.NullString
}

type bearingData struct {
	MeasurementID int64
	StationName   string
	Latitude      float64
	Longitude     float64
	Bearing       float64
	SignalLevel   sql.NullFloat64
	Confidence    sql.NullFloat64
}

type timeDifferenceData struct {
	MeasurementID int64
	Station1      string
	Station2      string
	Latitude1     float64
	Longitude1    float64
	Latitude2     float64
	Longitude2    float64
	TimeDiff      float64
	DistanceDiff  sql.NullFloat64
	Confidence    sql.NullFloat64
}

type estimateData struct {
	MeasurementID int64
	Method        string
	Solver        string
	Latitude      float64
	Longitude     float64
	Accuracy      sql.NullFloat64
	Contributing  int
	LowConfidence bool
}
