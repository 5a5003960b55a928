package locate

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
	"github.com/roman-kulish/spectrum-locator/internal/spectrum"
)

var (
	transmitter = geomath.LatLon{Lat: 48.12, Lon: 16.31}

	stationsByID = map[string]geomath.LatLon{
		"north": {Lat: 48.30, Lon: 16.25},
		"west":  {Lat: 48.05, Lon: 16.00},
		"east":  {Lat: 48.08, Lon: 16.60},
		"south": {Lat: 47.95, Lon: 16.35},
	}
)

// pair builds an exact observation for the transmitter between two stations.
func pair(s1, s2 string) TDOAObservation {
	c1, c2 := stationsByID[s1], stationsByID[s2]
	dd := geomath.Distance(transmitter, c1) - geomath.Distance(transmitter, c2)
	return TDOAObservation{
		Station1:        s1,
		Station2:        s2,
		Coords1:         c1,
		Coords2:         c2,
		TimeDifferenceS: dd / SpeedOfLight,
	}
}

func TestTDOAEstimator_Multilateration(t *testing.T) {
	testCases := []struct {
		name  string
		pairs []TDOAObservation
	}{
		{"three stations", []TDOAObservation{pair("north", "west"), pair("north", "east")}},
		{"four stations", []TDOAObservation{pair("north", "west"), pair("north", "east"), pair("north", "south")}},
		{"all pairs", []TDOAObservation{
			pair("north", "west"), pair("north", "east"), pair("north", "south"),
			pair("west", "east"), pair("west", "south"), pair("east", "south"),
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			estimate, err := NewTDOAEstimator().Estimate(tc.pairs)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if estimate.Solver != SolverMultilateration || estimate.Method != MethodTDOA {
				t.Fatalf("unexpected solver %q / method %q", estimate.Solver, estimate.Method)
			}
			if estimate.LowConfidence {
				t.Error("converged fix should not be low confidence")
			}
			if d := geomath.Distance(estimate.Position, transmitter); d > 5 {
				t.Errorf("expected position within 5 m of %s, got %s (%.1f m off)", transmitter, estimate.Position, d)
			}
			if estimate.ResidualRMSM == nil || *estimate.ResidualRMSM > 1 {
				t.Errorf("expected near-zero residual, got %v", estimate.ResidualRMSM)
			}

			acc, ok := estimate.Accuracy()
			if !ok || acc < minTDOAAccuracy || acc > maxTDOAAccuracy {
				t.Errorf("accuracy %f outside [%f, %f]", acc, minTDOAAccuracy, maxTDOAAccuracy)
			}
			if estimate.Contributing != len(tc.pairs) {
				t.Errorf("expected %d contributing pairs, got %d", len(tc.pairs), estimate.Contributing)
			}
		})
	}
}

func TestTDOAEstimator_InsufficientStations(t *testing.T) {
	estimate, err := NewTDOAEstimator().Estimate([]TDOAObservation{pair("north", "west")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected, _ := geomath.Centroid([]geomath.LatLon{stationsByID["north"], stationsByID["west"]})
	if estimate.Position != expected {
		t.Errorf("expected station centroid %s, got %s", expected, estimate.Position)
	}
	if !estimate.LowConfidence || estimate.Solver != SolverCentroid {
		t.Errorf("expected low confidence centroid, got %+v", estimate)
	}
	if _, ok := estimate.Accuracy(); ok {
		t.Error("accuracy should be unknown below a full fix")
	}
}

func TestTDOAEstimator_Passthrough(t *testing.T) {
	resolved := geomath.LatLon{Lat: 48.1, Lon: 16.3}
	accuracy := 250.0

	pairs := []TDOAObservation{pair("north", "west"), pair("north", "east")}
	estimate, err := NewTDOAEstimator().Estimate(pairs, WithResolvedPosition(resolved, &accuracy))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Position != resolved || estimate.Solver != SolverPassthrough {
		t.Errorf("expected passthrough of %s, got %q at %s", resolved, estimate.Solver, estimate.Position)
	}
	if acc, ok := estimate.Accuracy(); !ok || acc != accuracy {
		t.Errorf("expected accuracy %f, got %f", accuracy, acc)
	}
	if estimate.LowConfidence {
		t.Error("three stations and two pairs should not be low confidence")
	}

	estimate, err = NewTDOAEstimator().Estimate(pairs[:1], WithResolvedPosition(resolved, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !estimate.LowConfidence {
		t.Error("passthrough with a single pair should be low confidence")
	}

	_, err = NewTDOAEstimator().Estimate(pairs, WithResolvedPosition(geomath.LatLon{Lat: 100}, nil))
	if !errors.Is(err, geomath.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry for an invalid resolved position, got %v", err)
	}
}

func TestTDOAEstimator_Errors(t *testing.T) {
	e := NewTDOAEstimator()

	if _, err := e.Estimate(nil); !errors.Is(err, spectrum.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}

	bad := pair("north", "west")
	bad.Coords2 = geomath.LatLon{Lat: 0, Lon: 200}
	if _, err := e.Estimate([]TDOAObservation{bad}); !errors.Is(err, geomath.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}

	bad = pair("north", "west")
	bad.TimeDifferenceS = math.NaN()
	if _, err := e.Estimate([]TDOAObservation{bad}); !errors.Is(err, geomath.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry for NaN time difference, got %v", err)
	}
}

func TestTDOAEstimator_Normalize(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewTDOAEstimator(WithTDOALogger(logger))

	agreeing := TDOAObservation{Station1: "a", Station2: "b", TimeDifferenceS: 1e-5, DistanceDifferenceM: ptr(1e-5*SpeedOfLight + 1e-4)}
	missing := TDOAObservation{Station1: "a", Station2: "c", TimeDifferenceS: -2e-6}
	disagreeing := TDOAObservation{Station1: "b", Station2: "c", TimeDifferenceS: 3e-6, DistanceDifferenceM: ptr(5000)}

	input := []TDOAObservation{agreeing, missing, disagreeing}
	normalized := e.Normalize(input)

	for i, o := range normalized {
		if o.DistanceDifferenceM == nil {
			t.Fatalf("observation %d has no distance difference", i)
		}
		if expected := input[i].TimeDifferenceS * SpeedOfLight; *o.DistanceDifferenceM != expected {
			t.Errorf("observation %d: expected %f m, got %f m", i, expected, *o.DistanceDifferenceM)
		}
	}

	if *input[2].DistanceDifferenceM != 5000 {
		t.Error("Normalize must not modify its input")
	}

	logged := buf.String()
	if strings.Count(logged, "level=WARN") != 1 {
		t.Errorf("expected exactly one data quality warning, got log:\n%s", logged)
	}
	if !strings.Contains(logged, "station1=b") {
		t.Errorf("warning should identify the disagreeing pair, got log:\n%s", logged)
	}
}

func TestTDOAAccuracy(t *testing.T) {
	stations := []geomath.LatLon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}, {Lat: 0.01, Lon: 0}}
	obs := []TDOAObservation{{Confidence: ptr(50)}, {Confidence: ptr(50)}}

	// Spacing is about 1.2 km, so the geometric term is about 100 / 0.5 * 0.79.
	got := tdoaAccuracy(stations, obs, 0)
	if got < 150 || got > 180 {
		t.Errorf("unexpected accuracy %f", got)
	}

	if got = tdoaAccuracy(stations, obs, 1e6); got != maxTDOAAccuracy {
		t.Errorf("expected clamp to %f, got %f", maxTDOAAccuracy, got)
	}

	wide := []geomath.LatLon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 0}}
	if got = tdoaAccuracy(wide, nil, 0); got != minTDOAAccuracy {
		t.Errorf("expected clamp to %f, got %f", minTDOAAccuracy, got)
	}
}

func TestStepOutcome(t *testing.T) {
	testCases := []struct {
		name      string
		full      float64
		taken     float64
		accepted  bool
		converged bool
		stalled   bool
		done      bool
	}{
		{"at the minimum", 0.0005, 0, false, true, false, true},
		{"no improving step", 250, 0.2, false, false, true, true},
		{"small accepted step", 0.5, 0.0005, true, true, false, true},
		{"still moving", 250, 250, true, false, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			converged, stalled, done := stepOutcome(tc.full, tc.taken, tc.accepted, 0.001)
			if converged != tc.converged || stalled != tc.stalled || done != tc.done {
				t.Errorf("expected converged=%v stalled=%v done=%v, got %v %v %v",
					tc.converged, tc.stalled, tc.done, converged, stalled, done)
			}
		})
	}
}
