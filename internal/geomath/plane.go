package geomath

import (
	"math"
)

// LocalPlane is an equirectangular tangent plane anchored at an origin. Coordinates
// on the plane are meters east (X) and north (Y) of the origin. Distortion grows
// with distance from the origin; it is used for station networks spanning at most a
// few hundred kilometers.
type LocalPlane struct {
	origin LatLon
	cosLat float64
}

// NewLocalPlane creates a tangent plane anchored at origin.
func NewLocalPlane(origin LatLon) *LocalPlane {
	cosLat := math.Cos(toRadians(origin.Lat))
	if cosLat < 1e-9 {
		cosLat = 1e-9 // degenerate at the poles
	}
	return &LocalPlane{origin: origin, cosLat: cosLat}
}

// Origin returns the anchor of the plane.
func (lp *LocalPlane) Origin() LatLon {
	return lp.origin
}

// ToLocal projects p to plane coordinates in meters.
func (lp *LocalPlane) ToLocal(p LatLon) (x, y float64) {
	dLon := NormalizeLongitude(p.Lon - lp.origin.Lon)
	x = toRadians(dLon) * EarthRadius * lp.cosLat
	y = toRadians(p.Lat-lp.origin.Lat) * EarthRadius
	return x, y
}

// FromLocal converts plane coordinates back to a geographic coordinate.
func (lp *LocalPlane) FromLocal(x, y float64) LatLon {
	lat := lp.origin.Lat + toDegrees(y/EarthRadius)
	lon := lp.origin.Lon + toDegrees(x/(EarthRadius*lp.cosLat))
	return LatLon{
		Lat: math.Max(-90, math.Min(90, lat)),
		Lon: NormalizeLongitude(lon),
	}
}

// PathIntersection returns the intersection of two great-circle paths, each defined
// by a start point and an initial bearing. ok is false when the paths are
// coincident, parallel, or only meet behind one of the start points. A start point
// at a pole has no defined bearing and never intersects.
func PathIntersection(p1 LatLon, bearing1 float64, p2 LatLon, bearing2 float64) (LatLon, bool) {
	phi1, lambda1 := toRadians(p1.Lat), toRadians(p1.Lon)
	phi2, lambda2 := toRadians(p2.Lat), toRadians(p2.Lon)
	theta13, theta23 := toRadians(bearing1), toRadians(bearing2)

	dPhi := phi2 - phi1
	dLambda := lambda2 - lambda1

	delta12 := 2 * math.Asin(math.Sqrt(math.Sin(dPhi/2)*math.Sin(dPhi/2)+
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)))
	if math.Abs(delta12) < 1e-12 {
		return LatLon{}, false
	}
	if math.Abs(math.Cos(phi1)) < 1e-12 || math.Abs(math.Cos(phi2)) < 1e-12 {
		return LatLon{}, false
	}

	cosThetaA := (math.Sin(phi2) - math.Sin(phi1)*math.Cos(delta12)) / (math.Sin(delta12) * math.Cos(phi1))
	cosThetaB := (math.Sin(phi1) - math.Sin(phi2)*math.Cos(delta12)) / (math.Sin(delta12) * math.Cos(phi2))
	if math.IsNaN(cosThetaA) || math.IsNaN(cosThetaB) {
		return LatLon{}, false
	}
	thetaA := math.Acos(clampUnit(cosThetaA))
	thetaB := math.Acos(clampUnit(cosThetaB))

	var theta12, theta21 float64
	if math.Sin(dLambda) > 0 {
		theta12, theta21 = thetaA, 2*math.Pi-thetaB
	} else {
		theta12, theta21 = 2*math.Pi-thetaA, thetaB
	}

	alpha1 := theta13 - theta12
	alpha2 := theta21 - theta23

	if math.Abs(math.Sin(alpha1)) < 1e-12 && math.Abs(math.Sin(alpha2)) < 1e-12 {
		return LatLon{}, false // infinite intersections
	}
	if math.Sin(alpha1)*math.Sin(alpha2) < 0 {
		return LatLon{}, false // ambiguous, meets behind a start point
	}

	cosAlpha3 := -math.Cos(alpha1)*math.Cos(alpha2) + math.Sin(alpha1)*math.Sin(alpha2)*math.Cos(delta12)
	delta13 := math.Atan2(math.Sin(delta12)*math.Sin(alpha1)*math.Sin(alpha2), math.Cos(alpha2)+math.Cos(alpha1)*cosAlpha3)

	phi3 := math.Asin(clampUnit(math.Sin(phi1)*math.Cos(delta13) + math.Cos(phi1)*math.Sin(delta13)*math.Cos(theta13)))
	dLambda13 := math.Atan2(math.Sin(theta13)*math.Sin(delta13)*math.Cos(phi1), math.Cos(delta13)-math.Sin(phi1)*math.Sin(phi3))

	p3 := LatLon{
		Lat: toDegrees(phi3),
		Lon: NormalizeLongitude(toDegrees(lambda1 + dLambda13)),
	}
	if math.IsNaN(p3.Lat) || math.IsNaN(p3.Lon) {
		return LatLon{}, false
	}
	return p3, true
}
