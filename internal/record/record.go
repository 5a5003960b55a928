// Package record defines the JSON record shapes exchanged with the measurement
// service and validates them into the strict types used by the engine. Validation
// fails fast on the first malformed record.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

// ValidationError describes a malformed record.
type ValidationError struct {
	Kind  string // Record kind: sample, df or tdoa
	Index int    // Position of the record in its list
	Field string // Offending field
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record %d: field %s: %v", e.Kind, e.Index, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	errNotFinite   = errors.New("not a finite number")
	errOutOfRange  = errors.New("out of range")
	errMissing     = errors.New("missing value")
	errInvalidTime = errors.New("invalid timestamp")
)

// Timestamp accepts an RFC 3339 string, a number of milliseconds since the Unix
// epoch, or null.
type Timestamp struct {
	time.Time
	Valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateTime,
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				*t = Timestamp{Time: ts, Valid: true}
				return nil
			}
		}
		return fmt.Errorf("%w: %q", errInvalidTime, s)
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("%w: %s", errInvalidTime, data)
	}
	*t = Timestamp{Time: time.UnixMilli(int64(ms)).UTC(), Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Sample is a level measurement record. Required numeric fields are pointers so
// that an absent value is rejected instead of read as zero.
type Sample struct {
	Timestamp   Timestamp `json:"timestamp"`
	FrequencyHz *float64  `json:"frequency_hz"`
	LevelDBm    *float64  `json:"level_dbm"`
	BearingDeg  *float64  `json:"bearing_deg,omitempty"`
	LevelUnit   string    `json:"level_unit,omitempty"`
}

// DF is a direction finding result of one station.
type DF struct {
	StationName string   `json:"station_name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Bearing     *float64 `json:"bearing"`
	SignalLevel *float64 `json:"signal_level,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// Coordinates is a [latitude, longitude] pair.
type Coordinates [2]float64

// LatLon converts the pair.
func (c Coordinates) LatLon() geomath.LatLon {
	return geomath.LatLon{Lat: c[0], Lon: c[1]}
}

// TDOA is the time difference of arrival of one station pair.
type TDOA struct {
	Station1     string       `json:"station1"`
	Station2     string       `json:"station2"`
	Coords1      *Coordinates `json:"coords1"`
	Coords2      *Coordinates `json:"coords2"`
	TimeDiff     *float64     `json:"time_diff"`
	DistanceDiff *float64     `json:"distance_diff,omitempty"`
	Confidence   *float64     `json:"confidence,omitempty"`
}

// Location is a position resolved by the measurement service.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // m
}

// Result is a measurement result as delivered by the measurement service.
type Result struct {
	MeasurementID   string    `json:"measurement_id,omitempty"`
	MeasurementType string    `json:"measurement_type,omitempty"`
	Samples         []Sample  `json:"samples,omitempty"`
	DF              []DF      `json:"df_results,omitempty"`
	TDOA            []TDOA    `json:"tdoa_results,omitempty"`
	Location        *Location `json:"location,omitempty"`
}

// Decode reads a measurement result.
func Decode(r io.Reader) (*Result, error) {
	var result Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding measurement result: %w", err)
	}
	return &result, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkFinitePtr(v *float64) error {
	if v != nil && !finite(*v) {
		return errNotFinite
	}
	return nil
}

func checkConfidence(v *float64) error {
	if v == nil {
		return nil
	}
	if !finite(*v) {
		return errNotFinite
	}
	if *v < 0 || *v > 100 {
		return fmt.Errorf("%w: %f not in [0, 100]", errOutOfRange, *v)
	}
	return nil
}

// latLon joins separately decoded coordinates, reporting the first absent one.
func latLon(lat, lon *float64) (geomath.LatLon, string, error) {
	if lat == nil {
		return geomath.LatLon{}, "latitude", errMissing
	}
	if lon == nil {
		return geomath.LatLon{}, "longitude", errMissing
	}
	p := geomath.LatLon{Lat: *lat, Lon: *lon}
	if field, err := checkCoordinates(p); err != nil {
		return geomath.LatLon{}, field, err
	}
	return p, "", nil
}

func checkCoordinates(c geomath.LatLon) (string, error) {
	if !finite(c.Lat) {
		return "latitude", errNotFinite
	}
	if !finite(c.Lon) {
		return "longitude", errNotFinite
	}
	if c.Lat < -90 || c.Lat > 90 {
		return "latitude", fmt.Errorf("%w: %f not in [-90, 90]", errOutOfRange, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return "longitude", fmt.Errorf("%w: %f not in [-180, 180]", errOutOfRange, c.Lon)
	}
	return "", nil
}

// ToSample validates the record and converts it. The frequency is rounded to the
// nearest Hz.
func (s Sample) ToSample() (spectrum.Sample, error) {
	if s.FrequencyHz == nil {
		return spectrum.Sample{}, fieldError("frequency_hz", errMissing)
	}
	frequency := *s.FrequencyHz
	if !finite(frequency) {
		return spectrum.Sample{}, fieldError("frequency_hz", errNotFinite)
	}
	if frequency < 0 || frequency > math.MaxInt64/2 {
		return spectrum.Sample{}, fieldError("frequency_hz", fmt.Errorf("%w: %f", errOutOfRange, frequency))
	}
	if s.LevelDBm == nil {
		return spectrum.Sample{}, fieldError("level_dbm", errMissing)
	}
	if !finite(*s.LevelDBm) {
		return spectrum.Sample{}, fieldError("level_dbm", errNotFinite)
	}
	if err := checkFinitePtr(s.BearingDeg); err != nil {
		return spectrum.Sample{}, fieldError("bearing_deg", err)
	}

	var bearing *float64
	if s.BearingDeg != nil {
		b := geomath.NormalizeBearing(*s.BearingDeg)
		bearing = &b
	}

	return spectrum.Sample{
		Timestamp:    s.Timestamp.Time,
		HasTimestamp: s.Timestamp.Valid,
		FrequencyHz:  int64(math.Round(frequency)),
		LevelDBm:     *s.LevelDBm,
		BearingDeg:   bearing,
		Unit:         s.LevelUnit,
	}, nil
}

// ToObservation validates the record and converts it.
func (d DF) ToObservation() (locate.BearingObservation, error) {
	station, field, err := latLon(d.Latitude, d.Longitude)
	if err != nil {
		return locate.BearingObservation{}, fieldError(field, err)
	}
	if d.Bearing == nil {
		return locate.BearingObservation{}, fieldError("bearing", errMissing)
	}
	bearing := *d.Bearing
	if !finite(bearing) {
		return locate.BearingObservation{}, fieldError("bearing", errNotFinite)
	}
	if bearing < 0 || bearing >= 360 {
		return locate.BearingObservation{}, fieldError("bearing", fmt.Errorf("%w: %f not in [0, 360)", errOutOfRange, bearing))
	}
	if err := checkFinitePtr(d.SignalLevel); err != nil {
		return locate.BearingObservation{}, fieldError("signal_level", err)
	}
	if err := checkConfidence(d.Confidence); err != nil {
		return locate.BearingObservation{}, fieldError("confidence", err)
	}

	return locate.BearingObservation{
		StationID:   d.StationName,
		Station:     station,
		BearingDeg:  bearing,
		SignalLevel: d.SignalLevel,
		Confidence:  d.Confidence,
	}, nil
}

// ToObservation validates the record and converts it.
func (t TDOA) ToObservation() (locate.TDOAObservation, error) {
	if t.Station1 == "" {
		return locate.TDOAObservation{}, fieldError("station1", errMissing)
	}
	if t.Station2 == "" {
		return locate.TDOAObservation{}, fieldError("station2", errMissing)
	}
	if t.Coords1 == nil {
		return locate.TDOAObservation{}, fieldError("coords1", errMissing)
	}
	if field, err := checkCoordinates(t.Coords1.LatLon()); err != nil {
		return locate.TDOAObservation{}, fieldError("coords1."+field, err)
	}
	if t.Coords2 == nil {
		return locate.TDOAObservation{}, fieldError("coords2", errMissing)
	}
	if field, err := checkCoordinates(t.Coords2.LatLon()); err != nil {
		return locate.TDOAObservation{}, fieldError("coords2."+field, err)
	}
	if t.TimeDiff == nil {
		return locate.TDOAObservation{}, fieldError("time_diff", errMissing)
	}
	if !finite(*t.TimeDiff) {
		return locate.TDOAObservation{}, fieldError("time_diff", errNotFinite)
	}
	if err := checkFinitePtr(t.DistanceDiff); err != nil {
		return locate.TDOAObservation{}, fieldError("distance_diff", err)
	}
	if err := checkConfidence(t.Confidence); err != nil {
		return locate.TDOAObservation{}, fieldError("confidence", err)
	}

	return locate.TDOAObservation{
		Station1:            t.Station1,
		Station2:            t.Station2,
		Coords1:             t.Coords1.LatLon(),
		Coords2:             t.Coords2.LatLon(),
		TimeDifferenceS:     *t.TimeDiff,
		DistanceDifferenceM: t.DistanceDiff,
		Confidence:          t.Confidence,
	}, nil
}

// ToLatLon validates the location and converts it.
func (l Location) ToLatLon() (geomath.LatLon, error) {
	p, field, err := latLon(l.Latitude, l.Longitude)
	if err != nil {
		return geomath.LatLon{}, &ValidationError{Kind: "location", Field: field, Err: err}
	}
	if err := checkFinitePtr(l.Accuracy); err != nil {
		return geomath.LatLon{}, &ValidationError{Kind: "location", Field: "accuracy", Err: err}
	}
	return p, nil
}

// fieldError is completed with kind and index by the list converters.
func fieldError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// convert applies fn to every record and stamps kind and index on the first
// validation failure.
func convert[R any, T any](kind string, records []R, fn func(R) (T, error)) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, r := range records {
		v, err := fn(r)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Kind = kind
				verr.Index = i
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func ptr(v float64) *float64 {
	return &v
}

// Samples validates and converts sample records.
func Samples(records []Sample) ([]spectrum.Sample, error) {
	return convert("sample", records, Sample.ToSample)
}

// Bearings validates and converts DF records.
func Bearings(records []DF) ([]locate.BearingObservation, error) {
	return convert("df", records, DF.ToObservation)
}

// TimeDifferences validates and converts TDOA records.
func TimeDifferences(records []TDOA) ([]locate.TDOAObservation, error) {
	return convert("tdoa", records, TDOA.ToObservation)
}

// FromSample converts a sample back to its record shape.
func FromSample(s spectrum.Sample) Sample {
	return Sample{
		Timestamp:   Timestamp{Time: s.Timestamp, Valid: s.HasTimestamp},
		FrequencyHz: ptr(float64(s.FrequencyHz)),
		LevelDBm:    ptr(s.LevelDBm),
		BearingDeg:  s.BearingDeg,
		LevelUnit:   s.Unit,
	}
}
