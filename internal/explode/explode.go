// Package explode flattens geometries of any nesting depth into point features.
package explode

import (
	"fmt"
	"maps"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/geoconvert/internal/geometry"
)

type options struct {
	keepProperties bool
	concurrency    int
}

type Option func(*options)

// WithProperties copies the source feature's properties onto every point.
func WithProperties() Option {
	return func(o *options) { o.keepProperties = true }
}

// WithKeepProperties is WithProperties driven by a flag.
func WithKeepProperties(keep bool) Option {
	return func(o *options) { o.keepProperties = keep }
}

// WithConcurrency explodes up to n features at once. n <= 1 is sequential.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// Geometry returns one point per vertex of g in depth-first order. A ring's
// closing coordinate is skipped when it repeats the ring's first coordinate.
func Geometry(g geom.T) ([]*geom.Point, error) {
	return appendPoints(nil, g)
}

// Feature explodes a single feature.
func Feature(f *geojson.Feature, opts ...Option) (*geojson.FeatureCollection, error) {
	return FeatureCollection(&geojson.FeatureCollection{Features: []*geojson.Feature{f}}, opts...)
}

// FeatureCollection explodes every feature of fc and concatenates the results
// in feature order.
func FeatureCollection(fc *geojson.FeatureCollection, opts ...Option) (*geojson.FeatureCollection, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	out := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	if fc == nil || len(fc.Features) == 0 {
		return out, nil
	}

	parts := make([][]*geojson.Feature, len(fc.Features))
	errs := make([]error, len(fc.Features))

	if o.concurrency <= 1 || len(fc.Features) == 1 {
		for i, f := range fc.Features {
			parts[i], errs[i] = explodeFeature(f, o.keepProperties)
			if errs[i] != nil {
				break
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.concurrency)
		for i, f := range fc.Features {
			g.Go(func() error {
				parts[i], errs[i] = explodeFeature(f, o.keepProperties)
				return nil
			})
		}
		_ = g.Wait()
	}

	// lowest failing index wins so errors match a sequential run
	total := 0
	for i := range parts {
		if errs[i] != nil {
			return nil, fmt.Errorf("feature %d: %w", i, errs[i])
		}
		total += len(parts[i])
	}

	out.Features = make([]*geojson.Feature, 0, total)
	for _, p := range parts {
		out.Features = append(out.Features, p...)
	}
	return out, nil
}

func explodeFeature(f *geojson.Feature, keepProperties bool) ([]*geojson.Feature, error) {
	if f == nil {
		return nil, &geometry.UnsupportedGeometryError{Op: "explode", Type: "null"}
	}
	pts, err := Geometry(f.Geometry)
	if err != nil {
		return nil, err
	}
	out := make([]*geojson.Feature, len(pts))
	for i, p := range pts {
		pf := &geojson.Feature{Geometry: p}
		if keepProperties && f.Properties != nil {
			pf.Properties = maps.Clone(f.Properties)
		}
		out[i] = pf
	}
	return out, nil
}

func appendPoints(dst []*geom.Point, g geom.T) ([]*geom.Point, error) {
	switch t := g.(type) {
	case *geom.Point:
		if t.Empty() {
			return nil, &geometry.UnsupportedGeometryError{Op: "explode", Type: geometry.EmptyPointType}
		}
		return append(dst, newPoint(t.Layout(), t.Coords())), nil
	case *geom.MultiPoint:
		for i := range t.NumPoints() {
			p := t.Point(i)
			if p.Empty() {
				return nil, fmt.Errorf("point %d: %w",
					i, &geometry.UnsupportedGeometryError{Op: "explode", Type: geometry.EmptyPointType})
			}
			dst = append(dst, newPoint(t.Layout(), p.Coords()))
		}
		return dst, nil
	case *geom.LineString:
		return appendCoords(dst, t.Layout(), t.Coords()), nil
	case *geom.Polygon:
		return appendRings(dst, t.Layout(), t.Coords()), nil
	case *geom.MultiLineString:
		for _, ls := range t.Coords() {
			dst = appendCoords(dst, t.Layout(), ls)
		}
		return dst, nil
	case *geom.MultiPolygon:
		for _, p := range t.Coords() {
			dst = appendRings(dst, t.Layout(), p)
		}
		return dst, nil
	case *geom.GeometryCollection:
		var err error
		for i, member := range t.Geoms() {
			dst, err = appendPoints(dst, member)
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
		}
		return dst, nil
	default:
		return nil, &geometry.UnsupportedGeometryError{Op: "explode", Type: geometry.TypeName(g)}
	}
}

func appendCoords(dst []*geom.Point, layout geom.Layout, coords []geom.Coord) []*geom.Point {
	for _, c := range coords {
		dst = append(dst, newPoint(layout, c))
	}
	return dst
}

func appendRings(dst []*geom.Point, layout geom.Layout, rings [][]geom.Coord) []*geom.Point {
	for _, ring := range rings {
		if geometry.IsClosed(layout, ring) {
			ring = ring[:len(ring)-1]
		}
		dst = appendCoords(dst, layout, ring)
	}
	return dst
}

func newPoint(layout geom.Layout, c geom.Coord) *geom.Point {
	return geom.NewPointFlat(layout, geometry.CloneCoord(c))
}
