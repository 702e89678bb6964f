// Package geofence turns community GeoJSON into a point-containment predicate.
//
// Containment follows github.com/paulmach/orb/planar: a point on a ring edge
// counts as inside the outer ring and inside a hole, so edge points of the
// outer boundary are local and edge points of a hole are not.
package geofence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	ErrEmpty         = errors.New("geojson is empty")
	ErrNotPolygonal  = errors.New("geometry is not a polygon or multipolygon")
	ErrUnsupportedGJ = errors.New("unsupported geojson type")
)

// Boundary is an immutable union of polygons.
type Boundary struct {
	polygons []orb.Polygon
	bound    orb.Bound
}

// New builds a Boundary from polygonal orb geometries.
func New(geoms ...orb.Geometry) (*Boundary, error) {
	b := &Boundary{}
	for _, g := range geoms {
		if err := b.add(g); err != nil {
			return nil, err
		}
	}
	if len(b.polygons) == 0 {
		return nil, ErrEmpty
	}
	b.bound = b.polygons[0].Bound()
	for _, p := range b.polygons[1:] {
		b.bound = b.bound.Union(p.Bound())
	}
	return b, nil
}

func (b *Boundary) add(g orb.Geometry) error {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) == 0 {
			return nil
		}
		b.polygons = append(b.polygons, v)
	case orb.MultiPolygon:
		for _, p := range v {
			if err := b.add(p); err != nil {
				return err
			}
		}
	case orb.Collection:
		for _, sub := range v {
			if err := b.add(sub); err != nil {
				return err
			}
		}
	case nil:
		return ErrEmpty
	default:
		return fmt.Errorf("%w: %s", ErrNotPolygonal, g.GeoJSONType())
	}
	return nil
}

// Parse accepts a GeoJSON Polygon, MultiPolygon, GeometryCollection, Feature or
// FeatureCollection whose geometries are all polygonal.
func Parse(raw []byte) (*Boundary, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrEmpty
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}

	switch head.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("geojson feature: %w", err)
		}
		return New(f.Geometry)
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("geojson feature collection: %w", err)
		}
		geoms := make([]orb.Geometry, 0, len(fc.Features))
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
		return New(geoms...)
	case "Polygon", "MultiPolygon", "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("geojson geometry: %w", err)
		}
		return New(g.Geometry())
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnsupportedGJ)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotPolygonal, head.Type)
	}
}

// Contains reports whether p (x=longitude, y=latitude) lies in any polygon.
func (b *Boundary) Contains(p orb.Point) bool {
	if !b.bound.Contains(p) {
		return false
	}
	for _, poly := range b.polygons {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	return false
}

func (b *Boundary) Bound() orb.Bound { return b.bound }

// Polygons reports how many polygons make up the boundary.
func (b *Boundary) Polygons() int { return len(b.polygons) }
