package geometry

import (
	"errors"
	"testing"

	"github.com/twpayne/go-geom"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		g    geom.T
		want Family
	}{
		{geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{1, 2}), FamilyPoint},
		{geom.NewMultiPoint(geom.XY), FamilyPoint},
		{geom.NewLineString(geom.XY), FamilyLineString},
		{geom.NewMultiLineString(geom.XY), FamilyLineString},
		{geom.NewPolygon(geom.XY), FamilyPolygon},
		{geom.NewMultiPolygon(geom.XY), FamilyPolygon},
	}
	for _, tc := range tests {
		got, err := Classify(tc.g)
		if err != nil {
			t.Fatalf("Classify(%s): %v", TypeName(tc.g), err)
		}
		if got != tc.want {
			t.Fatalf("Classify(%s)=%s want %s", TypeName(tc.g), got, tc.want)
		}
	}
}

func TestClassify_Unsupported(t *testing.T) {
	for _, g := range []geom.T{nil, geom.NewGeometryCollection()} {
		_, err := Classify(g)
		if !errors.Is(err, ErrUnsupportedGeometry) {
			t.Fatalf("Classify(%s) err=%v want ErrUnsupportedGeometry", TypeName(g), err)
		}
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(nil); got != "null" {
		t.Fatalf("TypeName(nil)=%q", got)
	}
	if got := TypeName(geom.NewMultiPolygon(geom.XY)); got != "MultiPolygon" {
		t.Fatalf("TypeName=%q want MultiPolygon", got)
	}
	if got := TypeName(geom.NewGeometryCollection()); got != "GeometryCollection" {
		t.Fatalf("TypeName=%q want GeometryCollection", got)
	}
}

func TestIsClosed(t *testing.T) {
	closed := []geom.Coord{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	open := []geom.Coord{{0, 0}, {1, 0}, {1, 1}}
	if !IsClosed(geom.XY, closed) {
		t.Fatalf("closed ring reported open")
	}
	if IsClosed(geom.XY, open) {
		t.Fatalf("open ring reported closed")
	}
	if IsClosed(geom.XY, []geom.Coord{{0, 0}}) {
		t.Fatalf("single coordinate reported closed")
	}
	// altitude participates in equality for XYZ
	if IsClosed(geom.XYZ, []geom.Coord{{0, 0, 1}, {1, 1, 1}, {0, 0, 2}}) {
		t.Fatalf("ring differing in Z reported closed")
	}
}

func TestCloneCoords_DoesNotAlias(t *testing.T) {
	src := []geom.Coord{{1, 2}, {3, 4}}
	cp := CloneCoords(src)
	cp[0][0] = 99
	if src[0][0] != 1 {
		t.Fatalf("clone aliases source: %v", src)
	}
}
