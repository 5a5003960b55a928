package locate

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
	"github.com/roman-kulish/spectrum-locator/internal/station"
)

const (
	DefaultProbeDistance     = 50_000.0  // m, length of drawable rays
	DefaultNominalAccuracy   = 2_000.0   // m, DF accuracy without confidence values
	DefaultMaxIntersectRange = 100_000.0 // m, intersections further from a station are discarded

	referenceConfidence = 50.0 // confidence that yields the nominal accuracy
	minDFAccuracy       = 100.0
	maxDFAccuracy       = 20_000.0
)

// BearingOption configures a BearingEstimator
type BearingOption func(*BearingEstimator)

// WithProbeDistance sets the length of the rays materialised for display.
// Non-positive values are ignored.
func WithProbeDistance(meters float64) BearingOption {
	return func(e *BearingEstimator) {
		if meters > 0 {
			e.probeDistance = meters
		}
	}
}

// WithNominalAccuracy sets the accuracy radius reported at reference confidence.
// Non-positive values are ignored.
func WithNominalAccuracy(meters float64) BearingOption {
	return func(e *BearingEstimator) {
		if meters > 0 {
			e.nominalAccuracy = meters
		}
	}
}

// WithSolver selects the position solver. Only SolverCentroid and
// SolverIntersection are meaningful for bearings; other values are ignored.
func WithSolver(solver Solver) BearingOption {
	return func(e *BearingEstimator) {
		if solver == SolverCentroid || solver == SolverIntersection {
			e.solver = solver
		}
	}
}

// WithMaxIntersectionRange sets how far from both stations a bearing intersection
// may lie to be accepted. Non-positive values are ignored.
func WithMaxIntersectionRange(meters float64) BearingOption {
	return func(e *BearingEstimator) {
		if meters > 0 {
			e.maxIntersectRange = meters
		}
	}
}

// WithBearingLogger sets the logger for the estimator
func WithBearingLogger(logger *slog.Logger) BearingOption {
	return func(e *BearingEstimator) {
		e.logger = logger.With(slog.String("component", "df"))
	}
}

// BearingEstimator estimates a transmitter position from DF bearings.
//
// The default solver is the centroid of the station positions, weighted by
// confidence or signal level when every observation carries one. It is an
// approximation that ignores the bearings entirely; bearings are only used to
// draw rays. The intersection solver averages the pairwise great-circle
// intersections of the bearings instead.
type BearingEstimator struct {
	probeDistance     float64
	nominalAccuracy   float64
	maxIntersectRange float64
	solver            Solver
	logger            *slog.Logger
}

// NewBearingEstimator creates a new BearingEstimator with a discard logger and the
// centroid solver
func NewBearingEstimator(options ...BearingOption) *BearingEstimator {
	e := BearingEstimator{
		probeDistance:     DefaultProbeDistance,
		nominalAccuracy:   DefaultNominalAccuracy,
		maxIntersectRange: DefaultMaxIntersectRange,
		solver:            SolverCentroid,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Estimate computes a position from the observations. With a single observation
// the estimate is the station itself, flagged low confidence, with an unknown
// accuracy. Zero observations return spectrum.ErrInsufficientData.
func (e *BearingEstimator) Estimate(observations []BearingObservation) (*PositionEstimate, error) {
	if len(observations) == 0 {
		return nil, fmt.Errorf("estimating DF position: %w", spectrum.ErrInsufficientData)
	}

	rays := make([]Ray, len(observations))
	for i, o := range observations {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("validating bearing %d (%s): %w", i, o.StationID, err)
		}
		end, err := geomath.DestinationPoint(o.Station, o.BearingDeg, e.probeDistance)
		if err != nil {
			return nil, fmt.Errorf("projecting bearing %d (%s): %w", i, o.StationID, err)
		}
		rays[i] = Ray{
			StationID:  o.StationID,
			Origin:     o.Station,
			End:        end,
			BearingDeg: o.BearingDeg,
		}
	}

	estimate := PositionEstimate{
		Method:       MethodDF,
		Solver:       SolverCentroid,
		Contributing: len(observations),
		Rays:         rays,
	}

	if len(observations) < station.MinDFStations {
		e.logger.Warn("not enough bearings for a fix",
			slog.Int("bearings", len(observations)),
			slog.Int("required", station.MinDFStations))

		estimate.Position = observations[0].Station
		estimate.LowConfidence = true
		return &estimate, nil
	}

	if e.solver == SolverIntersection {
		if position, accuracy, ok := e.intersect(observations); ok {
			estimate.Position = position
			estimate.Solver = SolverIntersection
			estimate.AccuracyRadiusM = accuracy
			if estimate.AccuracyRadiusM == nil {
				estimate.AccuracyRadiusM = ptr(e.accuracy(observations))
			}
			return &estimate, nil
		}
		e.logger.Warn("bearings do not intersect, falling back to station centroid",
			slog.Int("bearings", len(observations)))
	}

	position, err := e.centroid(observations)
	if err != nil {
		return nil, fmt.Errorf("estimating DF position: %w", err)
	}

	estimate.Position = position
	estimate.AccuracyRadiusM = ptr(e.accuracy(observations))
	estimate.LowConfidence = distinctStations(observations) < station.MinDFStations

	e.logger.Debug("estimated DF position",
		slog.String("position", position.String()),
		slog.Float64("accuracy_m", *estimate.AccuracyRadiusM),
		slog.Int("bearings", len(observations)))

	return &estimate, nil
}

// centroid weights by confidence when every observation has a non-zero one, else
// by linear signal power when every observation has a level, else equally.
func (e *BearingEstimator) centroid(observations []BearingObservation) (geomath.LatLon, error) {
	points := make([]geomath.LatLon, len(observations))
	for i, o := range observations {
		points[i] = o.Station
	}

	if weights, ok := confidenceWeights(observations); ok {
		return geomath.WeightedCentroid(points, weights)
	}
	if weights, ok := levelWeights(observations); ok {
		return geomath.WeightedCentroid(points, weights)
	}
	return geomath.Centroid(points)
}

func confidenceWeights(observations []BearingObservation) ([]float64, bool) {
	weights := make([]float64, len(observations))
	var sum float64
	for i, o := range observations {
		if o.Confidence == nil {
			return nil, false
		}
		weights[i] = *o.Confidence
		sum += weights[i]
	}
	return weights, sum > 0
}

// levelWeights converts dBm to linear power in milliwatts, which is always positive.
func levelWeights(observations []BearingObservation) ([]float64, bool) {
	weights := make([]float64, len(observations))
	var sum float64
	for i, o := range observations {
		if o.SignalLevel == nil {
			return nil, false
		}
		weights[i] = math.Pow(10, *o.SignalLevel/10)
		sum += weights[i]
	}
	return weights, sum > 0 && !math.IsInf(sum, 0)
}

// accuracy scales the nominal radius inversely with mean confidence: confidence 50
// gives the nominal radius, 100 halves it. The result is clamped to [100 m, 20 km].
func (e *BearingEstimator) accuracy(observations []BearingObservation) float64 {
	confidences := make([]*float64, len(observations))
	for i, o := range observations {
		confidences[i] = o.Confidence
	}

	mean, ok := meanConfidence(confidences)
	if !ok {
		return e.nominalAccuracy
	}

	radius := e.nominalAccuracy * referenceConfidence / clamp(mean, 1, 100)
	return clamp(radius, minDFAccuracy, maxDFAccuracy)
}

// intersect averages all pairwise intersections within range of both stations.
// With more than one intersection the accuracy is their RMS spread.
func (e *BearingEstimator) intersect(observations []BearingObservation) (geomath.LatLon, *float64, bool) {
	var points []geomath.LatLon
	for i := 0; i < len(observations); i++ {
		for j := i + 1; j < len(observations); j++ {
			a, b := observations[i], observations[j]
			p, ok := geomath.PathIntersection(a.Station, a.BearingDeg, b.Station, b.BearingDeg)
			if !ok {
				continue
			}
			if geomath.Distance(a.Station, p) > e.maxIntersectRange || geomath.Distance(b.Station, p) > e.maxIntersectRange {
				e.logger.Debug("discarding distant intersection",
					slog.String("station1", a.StationID),
					slog.String("station2", b.StationID),
					slog.String("point", p.String()))
				continue
			}
			points = append(points, p)
		}
	}

	if len(points) == 0 {
		return geomath.LatLon{}, nil, false
	}

	center, err := geomath.Centroid(points)
	if err != nil {
		return geomath.LatLon{}, nil, false
	}
	if len(points) == 1 {
		return center, nil, true
	}

	var sumSq float64
	for _, p := range points {
		d := geomath.Distance(center, p)
		sumSq += d * d
	}
	spread := math.Sqrt(sumSq / float64(len(points)))
	return center, ptr(clamp(spread, minDFAccuracy, maxDFAccuracy)), true
}

func distinctStations(observations []BearingObservation) int {
	seen := make(map[geomath.LatLon]struct{}, len(observations))
	for _, o := range observations {
		seen[o.Station] = struct{}{}
	}
	return len(seen)
}
