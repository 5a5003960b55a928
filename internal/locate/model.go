// Package locate turns per-station direction finding (DF) bearings or time
// difference of arrival (TDOA) observations into an estimated transmitter position.
package locate

import (
	"fmt"
	"math"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
)

// SpeedOfLight in vacuum, m/s
const SpeedOfLight = 299_792_458.0

// Method identifies the location technique that produced an estimate.
type Method string

const (
	MethodDF   Method = "df"
	MethodTDOA Method = "tdoa"
)

// Solver identifies the algorithm that computed the position.
type Solver string

const (
	SolverCentroid        Solver = "centroid"        // Station centroid, optionally weighted
	SolverIntersection    Solver = "intersection"    // Mean of pairwise great-circle bearing intersections
	SolverPassthrough     Solver = "passthrough"     // Position resolved upstream and accepted as is
	SolverMultilateration Solver = "multilateration" // Least-squares hyperbolic fix
)

// BearingObservation is a bearing reported by one DF station.
type BearingObservation struct {
	StationID   string         `json:"stationId"`
	Station     geomath.LatLon `json:"station"`
	BearingDeg  float64        `json:"bearingDeg"`            // [0, 360)
	SignalLevel *float64       `json:"signalLevel,omitempty"` // dBm
	Confidence  *float64       `json:"confidence,omitempty"`  // [0, 100]
}

// Validate checks coordinates, bearing and confidence ranges.
func (o BearingObservation) Validate() error {
	if err := o.Station.Validate(); err != nil {
		return err
	}
	if math.IsNaN(o.BearingDeg) || o.BearingDeg < 0 || o.BearingDeg >= 360 {
		return fmt.Errorf("%w: bearing %f out of range [0, 360)", geomath.ErrInvalidGeometry, o.BearingDeg)
	}
	if o.SignalLevel != nil && (math.IsNaN(*o.SignalLevel) || math.IsInf(*o.SignalLevel, 0)) {
		return fmt.Errorf("%w: signal level is not a finite number", geomath.ErrInvalidGeometry)
	}
	return validateConfidence(o.Confidence)
}

// TDOAObservation is the arrival time difference of one signal at a pair of
// stations. TimeDifferenceS is the arrival time at Station1 minus the arrival time
// at Station2, so a positive value means the transmitter is closer to Station2.
type TDOAObservation struct {
	Station1            string         `json:"station1"`
	Station2            string         `json:"station2"`
	Coords1             geomath.LatLon `json:"coords1"`
	Coords2             geomath.LatLon `json:"coords2"`
	TimeDifferenceS     float64        `json:"timeDifferenceS"`
	DistanceDifferenceM *float64       `json:"distanceDifferenceM,omitempty"` // Derived from TimeDifferenceS when normalized
	Confidence          *float64       `json:"confidence,omitempty"`          // [0, 100]
}

// Validate checks coordinates, the time difference and confidence range.
func (o TDOAObservation) Validate() error {
	if err := o.Coords1.Validate(); err != nil {
		return fmt.Errorf("station %q: %w", o.Station1, err)
	}
	if err := o.Coords2.Validate(); err != nil {
		return fmt.Errorf("station %q: %w", o.Station2, err)
	}
	if math.IsNaN(o.TimeDifferenceS) || math.IsInf(o.TimeDifferenceS, 0) {
		return fmt.Errorf("%w: time difference is not a finite number", geomath.ErrInvalidGeometry)
	}
	if o.DistanceDifferenceM != nil && (math.IsNaN(*o.DistanceDifferenceM) || math.IsInf(*o.DistanceDifferenceM, 0)) {
		return fmt.Errorf("%w: distance difference is not a finite number", geomath.ErrInvalidGeometry)
	}
	return validateConfidence(o.Confidence)
}

// DistanceDifference returns the range difference implied by the time difference.
func (o TDOAObservation) DistanceDifference() float64 {
	return o.TimeDifferenceS * SpeedOfLight
}

func validateConfidence(c *float64) error {
	if c == nil {
		return nil
	}
	if math.IsNaN(*c) || *c < 0 || *c > 100 {
		return fmt.Errorf("%w: confidence %f out of range [0, 100]", geomath.ErrInvalidGeometry, *c)
	}
	return nil
}

// Ray is a drawable segment from a DF station along its bearing. It is used for
// display only and takes no part in the estimate.
type Ray struct {
	StationID  string         `json:"stationId"`
	Origin     geomath.LatLon `json:"origin"`
	End        geomath.LatLon `json:"end"`
	BearingDeg float64        `json:"bearingDeg"`
}

// PositionEstimate is the outcome of a DF or TDOA estimation.
type PositionEstimate struct {
	Position        geomath.LatLon `json:"position"`
	AccuracyRadiusM *float64       `json:"accuracyRadiusM"` // nil when unknown
	Method          Method         `json:"method"`
	Solver          Solver         `json:"solver"`
	Contributing    int            `json:"contributing"`  // Number of observations used
	LowConfidence   bool           `json:"lowConfidence"` // Set when the geometry does not support a fix
	Rays            []Ray          `json:"rays,omitempty"`
	ResidualRMSM    *float64       `json:"residualRmsM,omitempty"` // Multilateration only
}

// Accuracy returns the accuracy radius in meters and whether it is known.
func (e *PositionEstimate) Accuracy() (float64, bool) {
	if e.AccuracyRadiusM == nil {
		return 0, false
	}
	return *e.AccuracyRadiusM, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func ptr(v float64) *float64 {
	return &v
}

// meanConfidence returns the mean of the confidences present and whether any were.
func meanConfidence(values []*float64) (float64, bool) {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
