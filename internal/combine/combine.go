// Package combine merges same-family single geometries of a feature collection
// into one multi-geometry feature.
package combine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/geoconvert/internal/geometry"
)

const mixedMsg = "Your FeatureCollection must be of all of the same geometry type."

var (
	ErrMixedGeometryType = errors.New(mixedMsg)
	ErrLayoutMismatch    = errors.New("layout mismatch")
)

// MixedGeometryTypeError is returned when the input spans more than one family.
type MixedGeometryTypeError struct {
	Families []geometry.Family
}

func (e *MixedGeometryTypeError) Error() string {
	names := make([]string, len(e.Families))
	for i, f := range e.Families {
		names[i] = f.String()
	}
	return mixedMsg + " Found: " + strings.Join(names, ", ")
}

func (e *MixedGeometryTypeError) Is(target error) bool { return target == ErrMixedGeometryType }

// LayoutMismatchError is returned when a feature's coordinate layout differs
// from the first feature's.
type LayoutMismatchError struct {
	Index int
	Want  geom.Layout
	Got   geom.Layout
}

func (e *LayoutMismatchError) Error() string {
	return fmt.Sprintf("feature %d: layout %v does not match %v", e.Index, e.Got, e.Want)
}

func (e *LayoutMismatchError) Is(target error) bool { return target == ErrLayoutMismatch }

// Combine merges every feature of fc into a single MultiPoint, MultiLineString
// or MultiPolygon feature, preserving feature and coordinate order. An empty
// collection yields an empty collection.
//
// All features must share the first feature's coordinate layout: mixing XY
// with XYZ (or any other layout) fails with *LayoutMismatchError even within
// one family. An empty Point fails with *geometry.UnsupportedGeometryError.
func Combine(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	if fc == nil || len(fc.Features) == 0 {
		return &geojson.FeatureCollection{Features: []*geojson.Feature{}}, nil
	}

	family, layout, err := classifyAll(fc.Features)
	if err != nil {
		return nil, err
	}

	var out geom.T
	switch family {
	case geometry.FamilyPoint:
		out, err = combinePoints(fc.Features, layout)
	case geometry.FamilyLineString:
		out, err = combineLineStrings(fc.Features, layout)
	case geometry.FamilyPolygon:
		out, err = combinePolygons(fc.Features, layout)
	default:
		panic(fmt.Sprintf("combine: unknown family %s", family))
	}
	if err != nil {
		return nil, err
	}

	return &geojson.FeatureCollection{
		Features: []*geojson.Feature{{Geometry: out}},
	}, nil
}

// returns the single family and layout shared by all features
func classifyAll(feats []*geojson.Feature) (geometry.Family, geom.Layout, error) {
	var (
		seen     []geometry.Family
		layout   geom.Layout
		mismatch *LayoutMismatchError
	)
	for i, f := range feats {
		g := featureGeometry(f)
		fam, err := geometry.Classify(g)
		if err != nil {
			var ug *geometry.UnsupportedGeometryError
			if errors.As(err, &ug) {
				ug.Op = "combine"
			}
			return 0, geom.NoLayout, fmt.Errorf("feature %d: %w", i, err)
		}
		if !containsFamily(seen, fam) {
			seen = append(seen, fam)
		}
		if i == 0 {
			layout = g.Layout()
		} else if g.Layout() != layout && mismatch == nil {
			mismatch = &LayoutMismatchError{Index: i, Want: layout, Got: g.Layout()}
		}
	}
	// family mixing is reported ahead of layout differences
	if len(seen) > 1 {
		return 0, geom.NoLayout, &MixedGeometryTypeError{Families: seen}
	}
	if mismatch != nil {
		return 0, geom.NoLayout, mismatch
	}
	return seen[0], layout, nil
}

func featureGeometry(f *geojson.Feature) geom.T {
	if f == nil {
		return nil
	}
	return f.Geometry
}

func containsFamily(fs []geometry.Family, f geometry.Family) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

func combinePoints(feats []*geojson.Feature, layout geom.Layout) (*geom.MultiPoint, error) {
	coords := make([]geom.Coord, 0, len(feats))
	for i, f := range feats {
		switch g := f.Geometry.(type) {
		case *geom.Point:
			if g.Empty() {
				return nil, fmt.Errorf("feature %d: %w", i, emptyPoint())
			}
			coords = append(coords, geometry.CloneCoord(g.Coords()))
		case *geom.MultiPoint:
			for j := range g.NumPoints() {
				p := g.Point(j)
				if p.Empty() {
					return nil, fmt.Errorf("feature %d: point %d: %w", i, j, emptyPoint())
				}
				coords = append(coords, geometry.CloneCoord(p.Coords()))
			}
		}
	}
	mp, err := geom.NewMultiPoint(layout).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("build MultiPoint: %w", err)
	}
	return mp, nil
}

func emptyPoint() error {
	return &geometry.UnsupportedGeometryError{Op: "combine", Type: geometry.EmptyPointType}
}

func combineLineStrings(feats []*geojson.Feature, layout geom.Layout) (*geom.MultiLineString, error) {
	lines := make([][]geom.Coord, 0, len(feats))
	for _, f := range feats {
		switch g := f.Geometry.(type) {
		case *geom.LineString:
			lines = append(lines, geometry.CloneCoords(g.Coords()))
		case *geom.MultiLineString:
			for _, ls := range g.Coords() {
				lines = append(lines, geometry.CloneCoords(ls))
			}
		}
	}
	mls, err := geom.NewMultiLineString(layout).SetCoords(lines)
	if err != nil {
		return nil, fmt.Errorf("build MultiLineString: %w", err)
	}
	return mls, nil
}

func combinePolygons(feats []*geojson.Feature, layout geom.Layout) (*geom.MultiPolygon, error) {
	polys := make([][][]geom.Coord, 0, len(feats))
	for _, f := range feats {
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			polys = append(polys, cloneRings(g.Coords()))
		case *geom.MultiPolygon:
			for _, p := range g.Coords() {
				polys = append(polys, cloneRings(p))
			}
		}
	}
	mp, err := geom.NewMultiPolygon(layout).SetCoords(polys)
	if err != nil {
		return nil, fmt.Errorf("build MultiPolygon: %w", err)
	}
	return mp, nil
}

func cloneRings(rings [][]geom.Coord) [][]geom.Coord {
	out := make([][]geom.Coord, len(rings))
	for i, r := range rings {
		out[i] = geometry.CloneCoords(r)
	}
	return out
}
