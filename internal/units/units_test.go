package units

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const delta = 1e-10

func almostEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestRadiansToLength(t *testing.T) {
	tests := []struct {
		unit Unit
		want float64
	}{
		{Radians, 1},
		{Kilometers, 6373},
		{Miles, 3960},
	}
	for _, tc := range tests {
		got, err := RadiansToLength(1, tc.unit)
		if err != nil {
			t.Fatalf("RadiansToLength(1, %s): %v", tc.unit, err)
		}
		if got != tc.want {
			t.Fatalf("RadiansToLength(1, %s)=%v want %v", tc.unit, got, tc.want)
		}
	}
}

func TestLengthToRadians(t *testing.T) {
	tests := []struct {
		length float64
		unit   Unit
	}{
		{1, Radians},
		{6373, Kilometers},
		{3960, Miles},
	}
	for _, tc := range tests {
		got, err := LengthToRadians(tc.length, tc.unit)
		if err != nil {
			t.Fatalf("LengthToRadians(%v, %s): %v", tc.length, tc.unit, err)
		}
		if got != 1 {
			t.Fatalf("LengthToRadians(%v, %s)=%v want 1", tc.length, tc.unit, got)
		}
	}
}

func TestLengthToDegrees(t *testing.T) {
	tests := []struct {
		length float64
		unit   Unit
		want   float64
	}{
		{1, Radians, 57.29577951308232},
		{100, Kilometers, 0.8990393772647469},
		{10, Miles, 0.14468631190172304},
	}
	for _, tc := range tests {
		got, err := LengthToDegrees(tc.length, tc.unit)
		if err != nil {
			t.Fatalf("LengthToDegrees(%v, %s): %v", tc.length, tc.unit, err)
		}
		if !almostEqual(got, tc.want, delta) {
			t.Fatalf("LengthToDegrees(%v, %s)=%v want %v", tc.length, tc.unit, got, tc.want)
		}
	}
}

func TestConvertLength(t *testing.T) {
	got, err := ConvertLengthDefault(1000, Meters)
	if err != nil {
		t.Fatalf("ConvertLengthDefault: %v", err)
	}
	if !almostEqual(got, 1, delta) {
		t.Fatalf("1000 m -> km = %v want 1", got)
	}

	tests := []struct {
		length   float64
		from, to Unit
		want     float64
	}{
		{1, Kilometers, Miles, 0.6213714106386318},
		{1, Miles, Kilometers, 1.6093434343434343},
		{1, NauticalMiles, Kilometers, 1.851999843075488},
		{1, Meters, Centimeters, 100},
		{1, Meters, Millimeters, 1000},
		{1, Miles, Yards, 1760},
		{1, Yards, Feet, 3},
		{1, Feet, Inches, 12},
		{5, Kilometers, Meters, 5000},
	}
	for _, tc := range tests {
		got, err := ConvertLength(tc.length, tc.from, tc.to)
		if err != nil {
			t.Fatalf("ConvertLength(%v, %s, %s): %v", tc.length, tc.from, tc.to, err)
		}
		if !almostEqual(got, tc.want, 1e-6) {
			t.Fatalf("ConvertLength(%v, %s, %s)=%v want %v", tc.length, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRoundTrip_EveryUnit(t *testing.T) {
	xs := []float64{1e-9, 0.5, 1, 42, 6373, 1e9}
	for _, u := range Units() {
		for _, x := range xs {
			r, err := LengthToRadians(x, u)
			if err != nil {
				t.Fatalf("LengthToRadians(%v, %s): %v", x, u, err)
			}
			back, err := RadiansToLength(r, u)
			if err != nil {
				t.Fatalf("RadiansToLength(%v, %s): %v", r, u, err)
			}
			if !almostEqual(back, x, delta) {
				t.Fatalf("round trip %s: %v -> %v", u, x, back)
			}
		}
	}
}

func TestConvertLength_Transitive(t *testing.T) {
	direct, err := ConvertLength(12.5, Miles, Meters)
	if err != nil {
		t.Fatal(err)
	}
	km, err := ConvertLength(12.5, Miles, Kilometers)
	if err != nil {
		t.Fatal(err)
	}
	viaKm, err := ConvertLength(km, Kilometers, Meters)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(direct, viaKm, delta) {
		t.Fatalf("direct=%v via km=%v", direct, viaKm)
	}
}

func TestInvalidUnit(t *testing.T) {
	bogus := Unit("furlongs")
	checks := []func() error{
		func() error { _, err := RadiansToLength(1, bogus); return err },
		func() error { _, err := LengthToRadians(1, bogus); return err },
		func() error { _, err := LengthToDegrees(1, bogus); return err },
		func() error { _, err := ConvertLength(1, bogus, Kilometers); return err },
		func() error { _, err := ConvertLength(1, Kilometers, bogus); return err },
	}
	for i, check := range checks {
		err := check()
		if !errors.Is(err, ErrInvalidUnit) {
			t.Fatalf("check %d: err=%v want ErrInvalidUnit", i, err)
		}
		var iu *InvalidUnitError
		if !errors.As(err, &iu) || iu.Unit != bogus {
			t.Fatalf("check %d: err=%#v want *InvalidUnitError{furlongs}", i, err)
		}
	}
}

func TestParseUnit(t *testing.T) {
	tests := map[string]Unit{
		"km":             Kilometers,
		" Kilometers ":   Kilometers,
		"kilometres":     Kilometers,
		"Metres":         Meters,
		"millimetres":    Millimeters,
		"nautical-miles": NauticalMiles,
		"nautical_miles": NauticalMiles,
		"Nautical Miles": NauticalMiles,
		"nauticalmiles":  NauticalMiles,
		"MI":             Miles,
		"deg":            Degrees,
		"radians":        Radians,
		"ft":             Feet,
	}
	for in, want := range tests {
		got, err := ParseUnit(in)
		if err != nil {
			t.Fatalf("ParseUnit(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseUnit(%q)=%q want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", "  ", "parsecs", "kmh"} {
		if _, err := ParseUnit(bad); !errors.Is(err, ErrInvalidUnit) {
			t.Fatalf("ParseUnit(%q) err=%v want ErrInvalidUnit", bad, err)
		}
	}
}

func TestNewTable_Validation(t *testing.T) {
	bad := []map[Unit]float64{
		{Radians: 2},
		{Kilometers: 0},
		{Kilometers: -1},
		{Kilometers: math.NaN()},
		{Kilometers: math.Inf(1)},
		{"": 1},
	}
	for i, f := range bad {
		if _, err := NewTable(f); err == nil {
			t.Fatalf("case %d: expected error for %v", i, f)
		}
	}

	src := map[Unit]float64{Radians: 1, "leagues": 1147.2}
	tbl, err := NewTable(src)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	src["leagues"] = 1
	got, err := tbl.RadiansToLength(1, "leagues")
	if err != nil {
		t.Fatalf("RadiansToLength: %v", err)
	}
	if got != 1147.2 {
		t.Fatalf("table aliased its input: got %v want 1147.2", got)
	}
	if _, err := tbl.Factor(Kilometers); !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("custom table knows kilometers: %v", err)
	}
}

func TestZeroTable_KnowsNoUnits(t *testing.T) {
	var tbl Table
	if _, err := tbl.RadiansToLength(1, Radians); !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("zero table err=%v want ErrInvalidUnit", err)
	}
	if n := len(tbl.Units()); n != 0 {
		t.Fatalf("zero table units=%d want 0", n)
	}
}

func TestUnits_ListsCanonicalNamesOnly(t *testing.T) {
	got := Units()
	if len(got) != 11 {
		t.Fatalf("units=%d want 11: %v", len(got), got)
	}
	for _, u := range got {
		if strings.HasSuffix(string(u), "tres") {
			t.Fatalf("alias spelling %q listed as a unit", u)
		}
	}
	if _, err := Earth.Factor("kilometres"); err == nil {
		t.Fatalf("Factor accepted the alias spelling; aliases resolve through ParseUnit")
	}
}
