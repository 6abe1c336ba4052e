// Package router holds the HTTP handlers of the conversion service.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/geoconvert/internal/combine"
	"github.com/mohammed-shakir/geoconvert/internal/core/observability"
	"github.com/mohammed-shakir/geoconvert/internal/geometry"
	"github.com/mohammed-shakir/geoconvert/internal/units"
)

// ErrBadRequest marks request errors that are not domain errors, such as a
// missing parameter or a body that is not GeoJSON.
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency under route.
func instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

// StatusFor maps an operation error to its HTTP status.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, units.ErrInvalidUnit),
		errors.Is(err, combine.ErrMixedGeometryType),
		errors.Is(err, combine.ErrLayoutMismatch),
		errors.Is(err, geometry.ErrUnsupportedGeometry):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, units.ErrInvalidUnit):
		return "invalid_unit"
	case errors.Is(err, combine.ErrMixedGeometryType):
		return "mixed_geometry"
	case errors.Is(err, combine.ErrLayoutMismatch):
		return "layout_mismatch"
	case errors.Is(err, geometry.ErrUnsupportedGeometry):
		return "unsupported_geometry"
	case StatusFor(err) < http.StatusInternalServerError:
		return "bad_request"
	default:
		return "error"
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func parseFloatParam(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, badRequest("missing required parameter: %s", name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, badRequest("%s must be finite", name)
	}
	return f, nil
}

// parseUnitParam resolves the named parameter, falling back to def when it is
// absent.
func parseUnitParam(r *http.Request, name string, def units.Unit) (units.Unit, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if def == "" {
			return "", badRequest("missing required parameter: %s", name)
		}
		return def, nil
	}
	u, err := units.ParseUnit(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return u, nil
}
