// Package units converts lengths between named units, pivoting through radians
// of arc on the Earth's surface.
package units

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

type Unit string

const (
	Radians       Unit = "radians"
	Degrees       Unit = "degrees"
	Kilometers    Unit = "kilometers"
	Meters        Unit = "meters"
	Centimeters   Unit = "centimeters"
	Millimeters   Unit = "millimeters"
	Miles         Unit = "miles"
	NauticalMiles Unit = "nauticalmiles"
	Feet          Unit = "feet"
	Inches        Unit = "inches"
	Yards         Unit = "yards"
)

// DefaultTarget is the unit ConvertLengthDefault converts into.
const DefaultTarget = Kilometers

var ErrInvalidUnit = errors.New("invalid unit")

type InvalidUnitError struct {
	Unit Unit
}

func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("%q is not a valid unit", string(e.Unit))
}

func (e *InvalidUnitError) Is(target error) bool { return target == ErrInvalidUnit }

// Earth radius expressed in each unit.
var earthFactors = map[Unit]float64{
	Radians:       1,
	Degrees:       57.2957795,
	Kilometers:    6373,
	Meters:        6373000,
	Centimeters:   6.373e+8,
	Millimeters:   6.373e+9,
	Miles:         3960,
	NauticalMiles: 3441.145,
	Feet:          20908792.65,
	Inches:        250905600,
	Yards:         6969600,
}

// Earth is the built-in factor table.
var Earth = mustTable(earthFactors)

// Table maps units to the Earth radius expressed in that unit. The zero value
// knows no units. A Table is never modified after construction.
type Table struct {
	factors map[Unit]float64
}

// NewTable copies factors into a Table. Every factor must be finite and
// positive and radians, when present, must be 1.
func NewTable(factors map[Unit]float64) (Table, error) {
	out := make(map[Unit]float64, len(factors))
	for u, f := range factors {
		if u == "" {
			return Table{}, errors.New("empty unit name")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return Table{}, fmt.Errorf("unit %q: factor %v must be finite and > 0", u, f)
		}
		if u == Radians && f != 1 {
			return Table{}, fmt.Errorf("unit %q: factor %v (want 1)", u, f)
		}
		out[u] = f
	}
	return Table{factors: out}, nil
}

func mustTable(factors map[Unit]float64) Table {
	t, err := NewTable(factors)
	if err != nil {
		panic(fmt.Errorf("units: corrupt factor table: %w", err))
	}
	return t
}

func (t Table) Factor(u Unit) (float64, error) {
	f, ok := t.factors[u]
	if !ok {
		return 0, &InvalidUnitError{Unit: u}
	}
	return f, nil
}

// Units returns the known units in lexical order.
func (t Table) Units() []Unit {
	out := make([]Unit, 0, len(t.factors))
	for u := range t.factors {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Table) RadiansToLength(radians float64, u Unit) (float64, error) {
	f, err := t.Factor(u)
	if err != nil {
		return 0, err
	}
	return radians * f, nil
}

func (t Table) LengthToRadians(length float64, u Unit) (float64, error) {
	f, err := t.Factor(u)
	if err != nil {
		return 0, err
	}
	return length / f, nil
}

func (t Table) LengthToDegrees(length float64, u Unit) (float64, error) {
	r, err := t.LengthToRadians(length, u)
	if err != nil {
		return 0, err
	}
	return r * (180 / math.Pi), nil
}

// ConvertLength converts length from one unit to another through radians.
func (t Table) ConvertLength(length float64, from, to Unit) (float64, error) {
	r, err := t.LengthToRadians(length, from)
	if err != nil {
		return 0, err
	}
	return t.RadiansToLength(r, to)
}

func RadiansToLength(radians float64, u Unit) (float64, error) {
	return Earth.RadiansToLength(radians, u)
}

func LengthToRadians(length float64, u Unit) (float64, error) {
	return Earth.LengthToRadians(length, u)
}

func LengthToDegrees(length float64, u Unit) (float64, error) {
	return Earth.LengthToDegrees(length, u)
}

func ConvertLength(length float64, from, to Unit) (float64, error) {
	return Earth.ConvertLength(length, from, to)
}

// ConvertLengthDefault converts length into DefaultTarget.
func ConvertLengthDefault(length float64, from Unit) (float64, error) {
	return Earth.ConvertLength(length, from, DefaultTarget)
}

// Units lists the units of the built-in table.
func Units() []Unit {
	return Earth.Units()
}

var aliases = map[string]Unit{
	"rad":  Radians,
	"deg":  Degrees,
	"km":   Kilometers,
	"m":    Meters,
	"cm":   Centimeters,
	"mm":   Millimeters,
	"mi":   Miles,
	"nmi":  NauticalMiles,
	"nm":   NauticalMiles,
	"ft":   Feet,
	"in":   Inches,
	"yd":   Yards,
	"mile": Miles,
	"foot": Feet,
	"inch": Inches,
	"yard": Yards,

	"kilometres":  Kilometers,
	"metres":      Meters,
	"centimetres": Centimeters,
	"millimetres": Millimeters,
}

// ParseUnit resolves a unit name or common abbreviation, case-insensitively.
// "nautical-miles", "nautical_miles" and "nautical miles" all name NauticalMiles.
func ParseUnit(s string) (Unit, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	if norm == "" {
		return "", &InvalidUnitError{Unit: Unit(s)}
	}
	if u, ok := aliases[norm]; ok {
		return u, nil
	}
	if _, ok := earthFactors[Unit(norm)]; ok {
		return Unit(norm), nil
	}
	return "", &InvalidUnitError{Unit: Unit(s)}
}
