// Package geometry holds helpers over the go-geom variant set shared by the
// combine and explode operations.
package geometry

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
)

// Family groups single and multi variants that can be merged together.
type Family int

const (
	FamilyPoint Family = iota
	FamilyLineString
	FamilyPolygon
)

func (f Family) String() string {
	switch f {
	case FamilyPoint:
		return "Point"
	case FamilyLineString:
		return "LineString"
	case FamilyPolygon:
		return "Polygon"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// EmptyPointType is the UnsupportedGeometryError type of a Point without
// coordinates.
const EmptyPointType = "empty Point"

// UnsupportedGeometryError reports a geometry with no rule for the requested
// operation.
type UnsupportedGeometryError struct {
	Op   string
	Type string
}

func (e *UnsupportedGeometryError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("unsupported geometry type %s", e.Type)
	}
	return fmt.Sprintf("%s: unsupported geometry type %s", e.Op, e.Type)
}

func (e *UnsupportedGeometryError) Is(target error) bool { return target == ErrUnsupportedGeometry }

// Classify returns the family of g. GeometryCollection has no family.
func Classify(g geom.T) (Family, error) {
	switch g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return FamilyPoint, nil
	case *geom.LineString, *geom.MultiLineString:
		return FamilyLineString, nil
	case *geom.Polygon, *geom.MultiPolygon:
		return FamilyPolygon, nil
	default:
		return 0, &UnsupportedGeometryError{Type: TypeName(g)}
	}
}

// TypeName returns the GeoJSON type name of g.
func TypeName(g geom.T) string {
	switch g.(type) {
	case nil:
		return "null"
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return fmt.Sprintf("%T", g)
	}
}

func CloneCoord(c geom.Coord) geom.Coord {
	out := make(geom.Coord, len(c))
	copy(out, c)
	return out
}

func CloneCoords(cs []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(cs))
	for i, c := range cs {
		out[i] = CloneCoord(c)
	}
	return out
}

// CoordsEqual compares the first stride ordinates of a and b.
func CoordsEqual(layout geom.Layout, a, b geom.Coord) bool {
	n := layout.Stride()
	if len(a) < n || len(b) < n {
		return false
	}
	for i := range n {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsClosed reports whether ring has at least two coordinates and its last
// coordinate equals its first.
func IsClosed(layout geom.Layout, ring []geom.Coord) bool {
	if len(ring) < 2 {
		return false
	}
	return CoordsEqual(layout, ring[0], ring[len(ring)-1])
}
