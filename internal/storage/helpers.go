package storage

import (
	"database/sql"
	"errors"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func toSampleData(measurementID int64, s spectrum.Sample) *sampleData {
	data := sampleData{
		MeasurementID: measurementID,
		Frequency:     s.FrequencyHz,
		Level:         s.LevelDBm,
		Bearing:       toNullFloat(s.BearingDeg),
		Unit:          sql.NullString{String: s.Unit, Valid: s.Unit != ""},
	}
	if s.HasTimestamp {
		data.Timestamp = sql.NullTime{Time: s.Timestamp.UTC(), Valid: true}
	}
	return &data
}

func (d *sampleData) toSample() spectrum.Sample {
	s := spectrum.Sample{
		FrequencyHz: d.Frequency,
		LevelDBm:    d.Level,
		BearingDeg:  fromNullFloat(d.Bearing),
		Unit:        d.Unit.String,
	}
	if d.Timestamp.Valid {
		s.Timestamp = d.Timestamp.Time
		s.HasTimestamp = true
	}
	return s
}

func toBearingData(measurementID int64, o locate.BearingObservation) *bearingData {
	return &bearingData{
		MeasurementID: measurementID,
		StationName:   o.StationID,
		Latitude:      o.Station.Lat,
		Longitude:     o.Station.Lon,
		Bearing:       o.BearingDeg,
		SignalLevel:   toNullFloat(o.SignalLevel),
		Confidence:    toNullFloat(o.Confidence),
	}
}

func (d *bearingData) toObservation() locate.BearingObservation {
	return locate.BearingObservation{
		StationID:   d.StationName,
		Station:     geomath.LatLon{Lat: d.Latitude, Lon: d.Longitude},
		BearingDeg:  d.Bearing,
		SignalLevel: fromNullFloat(d.SignalLevel),
		Confidence:  fromNullFloat(d.Confidence),
	}
}

func toTimeDifferenceData(measurementID int64, o locate.TDOAObservation) *timeDifferenceData {
	return &timeDifferenceData{
		MeasurementID: measurementID,
		Station1:      o.Station1,
		Station2:      o.Station2,
		Latitude1:     o.Coords1.Lat,
		Longitude1:    o.Coords1.Lon,
		Latitude2:     o.Coords2.Lat,
		Longitude2:    o.Coords2.Lon,
		TimeDiff:      o.TimeDifferenceS,
		DistanceDiff:  toNullFloat(o.DistanceDifferenceM),
		Confidence:    toNullFloat(o.Confidence),
	}
}

func (d *timeDifferenceData) toObservation() locate.TDOAObservation {
	return locate.TDOAObservation{
		Station1:            d.Station1,
		Station2:            d.Station2,
		Coords1:             geomath.LatLon{Lat: d.Latitude1, Lon: d.Longitude1},
		Coords2:             geomath.LatLon{Lat: d.Latitude2, Lon: d.Longitude2},
		TimeDifferenceS:     d.TimeDiff,
		DistanceDifferenceM: fromNullFloat(d.DistanceDiff),
		Confidence:          fromNullFloat(d.Confidence),
	}
}

func toEstimateData(measurementID int64, e *locate.PositionEstimate) *estimateData {
	return &estimateData{
		MeasurementID: measurementID,
		Method:        string(e.Method),
		Solver:        string(e.Solver),
		Latitude:      e.Position.Lat,
		Longitude:     e.Position.Lon,
		Accuracy:      toNullFloat(e.AccuracyRadiusM),
		Contributing:  e.Contributing,
		LowConfidence: e.LowConfidence,
	}
}

func (d *estimateData) toEstimate() *locate.PositionEstimate {
	return &locate.PositionEstimate{
		Position:        geomath.LatLon{Lat: d.Latitude, Lon: d.Longitude},
		AccuracyRadiusM: fromNullFloat(d.Accuracy),
		Method:          locate.Method(d.Method),
		Solver:          locate.Solver(d.Solver),
		Contributing:    d.Contributing,
		LowConfidence:   d.LowConfidence,
	}
}

func (d *measurementData) toMeasurement() *Measurement {
	return &Measurement{
		ID:         d.ID,
		ExternalID: fromNullString(d.ExternalID),
		Type:       fromNullString(d.Type),
		CreatedAt:  d.CreatedAt,
		Metadata:   fromNullString(d.Metadata),
	}
}
