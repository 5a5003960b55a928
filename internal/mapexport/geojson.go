// Package mapexport renders position estimates as GeoJSON for web maps.
package mapexport

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roman-kulish/spectrum-locator/internal/geomath"
	"github.com/roman-kulish/spectrum-locator/internal/locate"
)

// DefaultCircleSegments is the number of vertices of an accuracy circle.
const DefaultCircleSegments = 64

// Feature types, stored in the "type" property of every feature.
const (
	FeatureEstimate = "estimate"
	FeatureAccuracy = "accuracy_area"
	FeatureStation  = "station"
	FeatureRay      = "df_ray"
	FeatureBaseline = "tdoa_baseline"
)

// Option configures an Exporter.
type Option func(*Exporter)

// WithCircleSegments sets the number of accuracy circle vertices. Values below 8
// are ignored.
func WithCircleSegments(n int) Option {
	return func(e *Exporter) {
		if n >= 8 {
			e.segments = n
		}
	}
}

// WithBearings adds the DF stations to the collection.
func WithBearings(obs []locate.BearingObservation) Option {
	return func(e *Exporter) {
		e.bearings = obs
	}
}

// WithTimeDifferences adds the TDOA stations and their baselines to the collection.
func WithTimeDifferences(obs []locate.TDOAObservation) Option {
	return func(e *Exporter) {
		e.pairs = obs
	}
}

// Exporter builds a GeoJSON feature collection for one estimate.
type Exporter struct {
	segments int
	bearings []locate.BearingObservation
	pairs    []locate.TDOAObservation
}

// NewExporter creates an exporter.
func NewExporter(opts ...Option) *Exporter {
	e := Exporter{segments: DefaultCircleSegments}
	for _, opt := range opts {
		opt(&e)
	}
	return &e
}

// FeatureCollection builds the collection: the estimated position, its accuracy
// circle when the radius is known, the DF rays, the contributing stations and
// the TDOA baselines.
func (e *Exporter) FeatureCollection(estimate *locate.PositionEstimate) (*geojson.FeatureCollection, error) {
	if err := estimate.Position.Validate(); err != nil {
		return nil, fmt.Errorf("exporting estimate: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"method": string(estimate.Method),
		"solver": string(estimate.Solver),
	}

	point := geojson.NewFeature(estimate.Position.Point())
	point.Properties["type"] = FeatureEstimate
	point.Properties["method"] = string(estimate.Method)
	point.Properties["solver"] = string(estimate.Solver)
	point.Properties["contributing"] = estimate.Contributing
	point.Properties["low_confidence"] = estimate.LowConfidence
	if acc, ok := estimate.Accuracy(); ok {
		point.Properties["accuracy_m"] = acc
	}
	if estimate.ResidualRMSM != nil {
		point.Properties["residual_rms_m"] = *estimate.ResidualRMSM
	}
	fc.Append(point)

	if acc, ok := estimate.Accuracy(); ok && acc > 0 {
		ring, err := Circle(estimate.Position, acc, e.segments)
		if err != nil {
			return nil, fmt.Errorf("exporting accuracy circle: %w", err)
		}
		circle := geojson.NewFeature(orb.Polygon{ring})
		circle.Properties["type"] = FeatureAccuracy
		circle.Properties["radius_m"] = acc
		fc.Append(circle)
	}

	for _, ray := range estimate.Rays {
		f := geojson.NewFeature(orb.LineString{ray.Origin.Point(), ray.End.Point()})
		f.Properties["type"] = FeatureRay
		f.Properties["station"] = ray.StationID
		f.Properties["bearing_deg"] = ray.BearingDeg
		fc.Append(f)
	}

	seen := make(map[string]struct{})
	addStation := func(id string, p geomath.LatLon) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		f := geojson.NewFeature(p.Point())
		f.Properties["type"] = FeatureStation
		f.Properties["name"] = id
		fc.Append(f)
	}

	for _, o := range e.bearings {
		addStation(o.StationID, o.Station)
	}

	for _, o := range e.pairs {
		addStation(o.Station1, o.Coords1)
		addStation(o.Station2, o.Coords2)

		f := geojson.NewFeature(orb.LineString{o.Coords1.Point(), o.Coords2.Point()})
		f.Properties["type"] = FeatureBaseline
		f.Properties["name"] = o.Station1 + "-" + o.Station2
		f.Properties["time_diff_s"] = o.TimeDifferenceS
		f.Properties["distance_diff_m"] = o.DistanceDifference()
		if o.Confidence != nil {
			f.Properties["confidence"] = *o.Confidence
		}
		fc.Append(f)
	}

	return fc, nil
}

// Write encodes the collection to w.
func Write(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding feature collection: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		return fmt.Errorf("writing feature collection: %w", err)
	}
	return nil
}

// Circle returns a closed ring of n points at radiusM around center.
func Circle(center geomath.LatLon, radiusM float64, n int) (orb.Ring, error) {
	if n < 3 {
		return nil, fmt.Errorf("%w: circle needs at least 3 points, got %d", geomath.ErrInvalidGeometry, n)
	}

	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		p, err := geomath.DestinationPoint(center, 360*float64(i)/float64(n), radiusM)
		if err != nil {
			return nil, err
		}
		ring = append(ring, p.Point())
	}
	return append(ring, ring[0]), nil
}
