package locate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
	"github.com/roman-kulish/spectrum-locator/internal/station"
)

const (
	DefaultMaxIterations = 50
	DefaultConvergence   = 1e-3 // m, step length that ends the iteration

	// Agreement required between a supplied distance difference and the one
	// derived from the time difference.
	distanceRelTolerance = 1e-6
	distanceAbsTolerance = 1e-3 // m

	minTDOAAccuracy = 10.0
	maxTDOAAccuracy = 5_000.0

	minStep     = 1_000.0 // m, lower bound of the per-iteration step limit
	maxHalvings = 10
)

// TDOAOption configures a TDOAEstimator
type TDOAOption func(*TDOAEstimator)

// WithMaxIterations sets the Gauss-Newton iteration limit. Non-positive values are
// ignored.
func WithMaxIterations(n int) TDOAOption {
	return func(e *TDOAEstimator) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithConvergence sets the step length in meters below which the solver stops.
// Non-positive values are ignored.
func WithConvergence(meters float64) TDOAOption {
	return func(e *TDOAEstimator) {
		if meters > 0 {
			e.convergence = meters
		}
	}
}

// WithTDOALogger sets the logger for the estimator
func WithTDOALogger(logger *slog.Logger) TDOAOption {
	return func(e *TDOAEstimator) {
		e.logger = logger.With(slog.String("component", "tdoa"))
	}
}

type estimateOptions struct {
	resolved *geomath.LatLon
	accuracy *float64
}

// EstimateOption configures a single TDOAEstimator.Estimate call.
type EstimateOption func(*estimateOptions)

// WithResolvedPosition makes Estimate accept a position resolved upstream instead
// of solving for one. accuracyM may be nil when unknown.
func WithResolvedPosition(position geomath.LatLon, accuracyM *float64) EstimateOption {
	return func(o *estimateOptions) {
		o.resolved = &position
		o.accuracy = accuracyM
	}
}

// TDOAEstimator estimates a transmitter position from pairwise arrival time
// differences. It solves the hyperbolic system by Gauss-Newton least squares in a
// local tangent plane anchored at the station centroid.
type TDOAEstimator struct {
	maxIterations int
	convergence   float64
	logger        *slog.Logger
}

// NewTDOAEstimator creates a new TDOAEstimator with a discard logger
func NewTDOAEstimator(options ...TDOAOption) *TDOAEstimator {
	e := TDOAEstimator{
		maxIterations: DefaultMaxIterations,
		convergence:   DefaultConvergence,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Normalize returns copies of the observations with DistanceDifferenceM derived
// from the time difference. A supplied distance difference that disagrees is
// replaced and logged as a data quality warning.
func (e *TDOAEstimator) Normalize(observations []TDOAObservation) []TDOAObservation {
	normalized := make([]TDOAObservation, len(observations))
	for i, o := range observations {
		derived := o.DistanceDifference()
		if o.DistanceDifferenceM != nil && !distanceAgrees(*o.DistanceDifferenceM, derived) {
			e.logger.Warn("distance difference disagrees with time difference, using time based value",
				slog.String("station1", o.Station1),
				slog.String("station2", o.Station2),
				slog.Float64("supplied_m", *o.DistanceDifferenceM),
				slog.Float64("derived_m", derived))
		}
		o.DistanceDifferenceM = ptr(derived)
		normalized[i] = o
	}
	return normalized
}

func distanceAgrees(supplied, derived float64) bool {
	diff := math.Abs(supplied - derived)
	return diff <= distanceAbsTolerance || diff <= distanceRelTolerance*math.Abs(derived)
}

// Estimate computes a position from the observations. With a resolved position the
// estimate passes it through. Otherwise a full fix needs at least three distinct
// stations and two pairs; below that the station centroid is returned, flagged low
// confidence, with an unknown accuracy. Zero observations return
// spectrum.ErrInsufficientData.
func (e *TDOAEstimator) Estimate(observations []TDOAObservation, options ...EstimateOption) (*PositionEstimate, error) {
	if len(observations) == 0 {
		return nil, fmt.Errorf("estimating TDOA position: %w", spectrum.ErrInsufficientData)
	}

	var opts estimateOptions
	for _, option := range options {
		option(&opts)
	}

	for i, o := range observations {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("validating TDOA pair %d: %w", i, err)
		}
	}

	observations = e.Normalize(observations)
	stations := distinctPairStations(observations)
	enough := len(stations) >= station.MinTDOAStations && len(observations) >= station.MinTDOAStations-1

	estimate := PositionEstimate{
		Method:       MethodTDOA,
		Contributing: len(observations),
	}

	if opts.resolved != nil {
		if err := opts.resolved.Validate(); err != nil {
			return nil, fmt.Errorf("accepting resolved TDOA position: %w", err)
		}
		estimate.Position = *opts.resolved
		estimate.AccuracyRadiusM = opts.accuracy
		estimate.Solver = SolverPassthrough
		estimate.LowConfidence = !enough
		return &estimate, nil
	}

	centroid, err := geomath.Centroid(stations)
	if err != nil {
		return nil, fmt.Errorf("estimating TDOA position: %w", err)
	}

	if !enough {
		e.logger.Warn("not enough stations for a TDOA fix",
			slog.Int("stations", len(stations)),
			slog.Int("pairs", len(observations)),
			slog.Int("required_stations", station.MinTDOAStations))

		estimate.Position = centroid
		estimate.Solver = SolverCentroid
		estimate.LowConfidence = true
		return &estimate, nil
	}

	sol, err := e.solve(centroid, stations, observations)
	if err != nil {
		e.logger.Warn("multilateration failed, falling back to station centroid", slog.Any("error", err))

		estimate.Position = centroid
		estimate.Solver = SolverCentroid
		estimate.LowConfidence = true
		return &estimate, nil
	}

	estimate.Position = sol.position
	estimate.Solver = SolverMultilateration
	estimate.ResidualRMSM = ptr(sol.rms)
	estimate.AccuracyRadiusM = ptr(tdoaAccuracy(stations, observations, sol.rms))
	estimate.LowConfidence = !sol.converged

	if sol.stalled {
		e.logger.Warn("multilateration stalled before converging",
			slog.Int("iterations", sol.iterations),
			slog.Float64("rms_m", sol.rms))
	}

	e.logger.Debug("estimated TDOA position",
		slog.String("position", sol.position.String()),
		slog.Float64("rms_m", sol.rms),
		slog.Int("iterations", sol.iterations),
		slog.Bool("converged", sol.converged))

	return &estimate, nil
}

var errDiverged = errors.New("solution diverged")

type solution struct {
	position   geomath.LatLon
	rms        float64
	iterations int
	converged  bool
	stalled    bool // No improving step was found before convergence
}

// solve runs a damped Gauss-Newton iteration. Residuals use great-circle ranges;
// the Jacobian comes from unit vectors in the tangent plane.
func (e *TDOAEstimator) solve(origin geomath.LatLon, stations []geomath.LatLon, observations []TDOAObservation) (solution, error) {
	plane := geomath.NewLocalPlane(origin)

	weights := make([]float64, len(observations))
	for i, o := range observations {
		weights[i] = 1
		if o.Confidence != nil {
			weights[i] = math.Sqrt(clamp(*o.Confidence/100, 0.01, 1))
		}
	}

	spread := networkSpread(stations)
	maxStep := math.Max(minStep, spread)
	maxRange := 10*spread + 50_000

	var x, y float64
	cost := e.cost(plane, x, y, observations, weights)

	sol := solution{}
	for sol.iterations < e.maxIterations {
		sol.iterations++

		p := plane.FromLocal(x, y)
		jac := mat.NewDense(len(observations), 2, nil)
		res := mat.NewVecDense(len(observations), nil)
		for i, o := range observations {
			x1, y1 := plane.ToLocal(o.Coords1)
			x2, y2 := plane.ToLocal(o.Coords2)

			r1, r2 := geomath.Distance(p, o.Coords1), geomath.Distance(p, o.Coords2)
			ux1, uy1 := unit(x-x1, y-y1)
			ux2, uy2 := unit(x-x2, y-y2)

			jac.Set(i, 0, weights[i]*(ux1-ux2))
			jac.Set(i, 1, weights[i]*(uy1-uy2))
			res.SetVec(i, -weights[i]*((r1-r2)-*o.DistanceDifferenceM))
		}

		var step mat.VecDense
		if err := step.SolveVec(jac, res); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return solution{}, fmt.Errorf("solving normal equations: %w", err)
			}
			return solution{}, fmt.Errorf("ill-conditioned station geometry: %w", err)
		}

		dx, dy := step.AtVec(0), step.AtVec(1)
		if length := math.Hypot(dx, dy); length > maxStep {
			dx, dy = dx*maxStep/length, dy*maxStep/length
		}
		full := math.Hypot(dx, dy)

		// Backtrack until the step improves the fit.
		accepted := false
		for h := 0; h <= maxHalvings; h++ {
			nextCost := e.cost(plane, x+dx, y+dy, observations, weights)
			if nextCost <= cost {
				x, y, cost = x+dx, y+dy, nextCost
				accepted = true
				break
			}
			dx, dy = dx/2, dy/2
		}

		var done bool
		sol.converged, sol.stalled, done = stepOutcome(full, math.Hypot(dx, dy), accepted, e.convergence)
		if done {
			break
		}
	}

	if math.IsNaN(x) || math.IsNaN(y) || math.Hypot(x, y) > maxRange {
		return solution{}, errDiverged
	}

	sol.position = plane.FromLocal(x, y)
	sol.rms = math.Sqrt(e.cost(plane, x, y, observations, nil) / float64(len(observations)))
	return sol, nil
}

// stepOutcome decides whether an iteration ends the solve. A full Gauss-Newton step
// shorter than the tolerance means the fit sits at its minimum. When backtracking
// finds no improving step before that, the solve stalled and has not converged.
func stepOutcome(full, taken float64, accepted bool, tolerance float64) (converged, stalled, done bool) {
	switch {
	case full < tolerance:
		return true, false, true
	case !accepted:
		return false, true, true
	case taken < tolerance:
		return true, false, true
	}
	return false, false, false
}

// cost returns the weighted sum of squared range difference residuals. nil
// weights count every residual once.
func (e *TDOAEstimator) cost(plane *geomath.LocalPlane, x, y float64, observations []TDOAObservation, weights []float64) float64 {
	p := plane.FromLocal(x, y)

	var sum float64
	for i, o := range observations {
		r := (geomath.Distance(p, o.Coords1) - geomath.Distance(p, o.Coords2)) - *o.DistanceDifferenceM
		if weights != nil {
			r *= weights[i]
		}
		sum += r * r
	}
	return sum
}

// unit returns the unit vector of (x, y). The zero vector, where the position sits
// on a station, returns zero.
func unit(x, y float64) (float64, float64) {
	n := math.Hypot(x, y)
	if n < 1e-9 {
		return 0, 0
	}
	return x / n, y / n
}

// networkSpread returns the mean pairwise distance between stations.
func networkSpread(stations []geomath.LatLon) float64 {
	var sum float64
	var n int
	for i := 0; i < len(stations); i++ {
		for j := i + 1; j < len(stations); j++ {
			sum += geomath.Distance(stations[i], stations[j])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// tdoaAccuracy combines the residual RMS with a geometric dilution estimate:
// higher pair confidence and wider station spacing shrink the radius. The result
// is clamped to [10 m, 5 km].
func tdoaAccuracy(stations []geomath.LatLon, observations []TDOAObservation, rms float64) float64 {
	confidences := make([]*float64, len(observations))
	for i, o := range observations {
		confidences[i] = o.Confidence
	}

	fraction := 1.0
	if mean, ok := meanConfidence(confidences); ok {
		fraction = clamp(mean, 1, 100) / 100
	}

	baseError := 100.0 / fraction
	gdop := 1.0
	if spread := networkSpread(stations); spread > 0 {
		gdop = 1000.0 / spread
	}

	return clamp(math.Max(rms, baseError*gdop), minTDOAAccuracy, maxTDOAAccuracy)
}

// distinctPairStations returns the distinct station positions across all pairs in
// first-seen order.
func distinctPairStations(observations []TDOAObservation) []geomath.LatLon {
	seen := make(map[geomath.LatLon]struct{})
	var stations []geomath.LatLon
	for _, o := range observations {
		for _, c := range []geomath.LatLon{o.Coords1, o.Coords2} {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			stations = append(stations, c)
		}
	}
	return stations
}
