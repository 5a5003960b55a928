// Package geomath provides the spherical geometry primitives used by the position
// estimators: forward great-circle calculation, centroids, distances and a local
// tangent plane for small-area least squares.
package geomath

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6_371_000.0

// ErrInvalidGeometry is returned for malformed coordinates or arguments. It usually
// means upstream data corruption and should be propagated.
var ErrInvalidGeometry = errors.New("invalid geometry")

// LatLon is a geographic coordinate in decimal degrees (WGS 84).
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the coordinate as an orb.Point, which is ordered [lon, lat].
func (p LatLon) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromPoint converts an orb.Point back to LatLon.
func FromPoint(p orb.Point) LatLon {
	return LatLon{Lat: p.Lat(), Lon: p.Lon()}
}

// Validate reports whether the coordinate is finite and within range.
func (p LatLon) Validate() error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0):
		return fmt.Errorf("%w: latitude is not a finite number", ErrInvalidGeometry)
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return fmt.Errorf("%w: longitude is not a finite number", ErrInvalidGeometry)
	case p.Lat < -90 || p.Lat > 90:
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidGeometry, p.Lat)
	case p.Lon < -180 || p.Lon > 180:
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidGeometry, p.Lon)
	}
	return nil
}

func (p LatLon) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeLongitude wraps a longitude in degrees into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// NormalizeBearing wraps a bearing in degrees into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// DestinationPoint returns the point reached by travelling distanceM meters from
// origin along the great circle with the given initial bearing.
func DestinationPoint(origin LatLon, bearingDeg, distanceM float64) (LatLon, error) {
	if err := origin.Validate(); err != nil {
		return LatLon{}, err
	}
	if distanceM < 0 || math.IsNaN(distanceM) || math.IsInf(distanceM, 0) {
		return LatLon{}, fmt.Errorf("%w: distance %f must be a non-negative number", ErrInvalidGeometry, distanceM)
	}
	if math.IsNaN(bearingDeg) || math.IsInf(bearingDeg, 0) {
		return LatLon{}, fmt.Errorf("%w: bearing is not a finite number", ErrInvalidGeometry)
	}
	if distanceM == 0 {
		return origin, nil
	}

	delta := distanceM / EarthRadius
	theta := toRadians(bearingDeg)
	phi1 := toRadians(origin.Lat)
	lambda1 := toRadians(origin.Lon)

	sinPhi2 := clampUnit(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	phi2 := math.Asin(sinPhi2)

	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	return LatLon{
		Lat: toDegrees(phi2),
		Lon: NormalizeLongitude(toDegrees(lambda2)),
	}, nil
}

// Centroid returns the arithmetic mean of the coordinates.
//
// This is a planar approximation: it is adequate for stations within a few hundred
// kilometers of each other and gives wrong results for point sets that straddle the
// antimeridian or surround a pole.
func Centroid(points []LatLon) (LatLon, error) {
	return WeightedCentroid(points, nil)
}

// WeightedCentroid returns the weighted arithmetic mean of the coordinates. A nil
// weights slice means equal weights. Weights must be finite, non-negative and must
// not all be zero.
func WeightedCentroid(points []LatLon, weights []float64) (LatLon, error) {
	if len(points) == 0 {
		return LatLon{}, fmt.Errorf("%w: centroid requires at least one point", ErrInvalidGeometry)
	}
	if weights != nil && len(weights) != len(points) {
		return LatLon{}, fmt.Errorf("%w: %d weights given for %d points", ErrInvalidGeometry, len(weights), len(points))
	}

	var sum float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return LatLon{}, fmt.Errorf("%w: invalid weight %f", ErrInvalidGeometry, w)
		}
		sum += w
	}
	if weights != nil && sum == 0 {
		return LatLon{}, fmt.Errorf("%w: weights sum to zero", ErrInvalidGeometry)
	}

	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return LatLon{}, fmt.Errorf("point %d: %w", i, err)
		}
		lats[i] = p.Lat
		lons[i] = p.Lon
	}

	return LatLon{
		Lat: stat.Mean(lats, weights),
		Lon: stat.Mean(lons, weights),
	}, nil
}

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b LatLon) float64 {
	phi1, phi2 := toRadians(a.Lat), toRadians(b.Lat)
	dPhi := phi2 - phi1
	dLambda := toRadians(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(math.Min(1, h)))
}

// InitialBearing returns the initial great-circle bearing from a to b in [0, 360).
func InitialBearing(a, b LatLon) float64 {
	phi1, phi2 := toRadians(a.Lat), toRadians(b.Lat)
	dLambda := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return NormalizeBearing(toDegrees(math.Atan2(y, x)))
}
