package router

import (
	"net/http"
	"time"

	"github.com/mohammed-shakir/geoconvert/internal/core/observability"
	"github.com/mohammed-shakir/geoconvert/internal/units"
)

// Conversion is the response of every unit conversion endpoint.
type Conversion struct {
	Value  float64    `json:"value"`
	From   units.Unit `json:"from"`
	To     units.Unit `json:"to"`
	Result float64    `json:"result"`
}

type UnitFactor struct {
	Unit   units.Unit `json:"unit"`
	Factor float64    `json:"factor"`
}

// HandleConvert serves GET /convert?value=&from=&to=. to defaults to
// kilometers.
func HandleConvert() http.HandlerFunc {
	return instrument("/convert", func(w http.ResponseWriter, r *http.Request) {
		serveConversion(w, "convert", func() (Conversion, error) {
			v, err := parseFloatParam(r, "value")
			if err != nil {
				return Conversion{}, err
			}
			from, err := parseUnitParam(r, "from", "")
			if err != nil {
				return Conversion{}, err
			}
			to, err := parseUnitParam(r, "to", units.DefaultTarget)
			if err != nil {
				return Conversion{}, err
			}
			res, err := units.ConvertLength(v, from, to)
			return Conversion{Value: v, From: from, To: to, Result: res}, err
		})
	})
}

// HandleRadiansToLength serves GET /radians-to-length?radians=&unit=.
func HandleRadiansToLength() http.HandlerFunc {
	return instrument("/radians-to-length", func(w http.ResponseWriter, r *http.Request) {
		serveConversion(w, "radians_to_length", func() (Conversion, error) {
			v, err := parseFloatParam(r, "radians")
			if err != nil {
				return Conversion{}, err
			}
			u, err := parseUnitParam(r, "unit", units.DefaultTarget)
			if err != nil {
				return Conversion{}, err
			}
			res, err := units.RadiansToLength(v, u)
			return Conversion{Value: v, From: units.Radians, To: u, Result: res}, err
		})
	})
}

// HandleLengthToRadians serves GET /length-to-radians?length=&unit=.
func HandleLengthToRadians() http.HandlerFunc {
	return instrument("/length-to-radians", func(w http.ResponseWriter, r *http.Request) {
		serveConversion(w, "length_to_radians", func() (Conversion, error) {
			v, err := parseFloatParam(r, "length")
			if err != nil {
				return Conversion{}, err
			}
			u, err := parseUnitParam(r, "unit", units.DefaultTarget)
			if err != nil {
				return Conversion{}, err
			}
			res, err := units.LengthToRadians(v, u)
			return Conversion{Value: v, From: u, To: units.Radians, Result: res}, err
		})
	})
}

// HandleLengthToDegrees serves GET /length-to-degrees?length=&unit=.
func HandleLengthToDegrees() http.HandlerFunc {
	return instrument("/length-to-degrees", func(w http.ResponseWriter, r *http.Request) {
		serveConversion(w, "length_to_degrees", func() (Conversion, error) {
			v, err := parseFloatParam(r, "length")
			if err != nil {
				return Conversion{}, err
			}
			u, err := parseUnitParam(r, "unit", units.DefaultTarget)
			if err != nil {
				return Conversion{}, err
			}
			res, err := units.LengthToDegrees(v, u)
			return Conversion{Value: v, From: u, To: units.Degrees, Result: res}, err
		})
	})
}

// HandleUnits lists the canonical units with their factors.
func HandleUnits() http.HandlerFunc {
	return instrument("/units", func(w http.ResponseWriter, _ *http.Request) {
		list := units.Units()
		out := make([]UnitFactor, 0, len(list))
		for _, u := range list {
			f, err := units.Earth.Factor(u)
			if err != nil {
				writeError(w, err)
				return
			}
			out = append(out, UnitFactor{Unit: u, Factor: f})
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func serveConversion(w http.ResponseWriter, op string, fn func() (Conversion, error)) {
	start := time.Now()
	c, err := fn()
	observability.ObserveOperation(op, outcome(err), time.Since(start).Seconds())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
