package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/geoconvert/internal/cache/lrustore"
	"github.com/mohammed-shakir/geoconvert/internal/core/config"
	"github.com/mohammed-shakir/geoconvert/internal/opevents"
)

var errBoom = errors.New("boom")

type sinkRecorder struct {
	mu  sync.Mutex
	evs []opevents.Event
}

func (s *sinkRecorder) Publish(ev opevents.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
}

func (s *sinkRecorder) events() []opevents.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]opevents.Event(nil), s.evs...)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errBoom
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errBoom
}

func (failingCache) Del(context.Context, ...string) error {
	return errBoom
}

const twoPoints = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[19.2,47.3]}},
 {"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[19.6,47.5]}}]}`

const mixed = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}},
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`

const square = `{"type":"Feature","id":"sq","properties":{"name":"square"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOps(t *testing.T, mutate func(*config.Config), withCache bool) (*GeoOps, *sinkRecorder) {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	sink := &sinkRecorder{}
	if !withCache {
		return NewGeoOps(discard(), cfg, nil, sink), sink
	}
	store, err := lrustore.New(16)
	if err != nil {
		t.Fatalf("lrustore: %v", err)
	}
	return NewGeoOps(discard(), cfg, store, sink), sink
}

func post(h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return rr
}

func decodeFC(t *testing.T, rr *httptest.ResponseRecorder) *geojson.FeatureCollection {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(rr.Body.Bytes(), &fc); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return &fc
}

func TestHandleCombine_CachesAndPublishes(t *testing.T) {
	ops, sink := newOps(t, nil, true)

	rr := post(ops.HandleCombine(), "/combine", twoPoints)
	fc := decodeFC(t, rr)
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache=%q want MISS", rr.Header().Get("X-Cache"))
	}
	if len(fc.Features) != 1 {
		t.Fatalf("features=%d want 1", len(fc.Features))
	}
	mp, ok := fc.Features[0].Geometry.(*geom.MultiPoint)
	if !ok {
		t.Fatalf("geometry=%T want *geom.MultiPoint", fc.Features[0].Geometry)
	}
	if diff := cmp.Diff([]geom.Coord{{19.2, 47.3}, {19.6, 47.5}}, mp.Coords()); diff != "" {
		t.Fatalf("coords mismatch (-want +got):\n%s", diff)
	}

	// same document, different whitespace
	rr2 := post(ops.HandleCombine(), "/combine", strings.ReplaceAll(twoPoints, "\n", ""))
	if rr2.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache=%q want HIT", rr2.Header().Get("X-Cache"))
	}
	if rr2.Body.String() != rr.Body.String() {
		t.Fatalf("cached body differs:\n%s\n%s", rr2.Body.String(), rr.Body.String())
	}

	evs := sink.events()
	if len(evs) != 2 {
		t.Fatalf("events=%d want 2", len(evs))
	}
	for i, ev := range evs {
		if ev.Op != "combine" || ev.FeaturesIn != 2 || ev.FeaturesOut != 1 || ev.Cached != (i == 1) {
			t.Fatalf("event %d=%+v", i, ev)
		}
	}
}

func TestHandleCombine_Rejections(t *testing.T) {
	ops, sink := newOps(t, nil, false)

	cases := []struct {
		name    string
		body    string
		wantSub string
	}{
		{"mixed", mixed, "Your FeatureCollection must be of all of the same geometry type."},
		{"not a collection", square, "combine expects a FeatureCollection"},
		{"not json", "{", "decode GeoJSON"},
		{"no type", `{"features":[]}`, "missing GeoJSON"},
		{"empty point", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}},{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[]}}]}`, "unsupported geometry type empty Point"},
		{"geometry collection", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}}]}`, "unsupported geometry type GeometryCollection"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(ops.HandleCombine(), "/combine", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d want 400 body=%s", rr.Code, rr.Body.String())
			}
			var eb errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &eb); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if !strings.Contains(eb.Error, tc.wantSub) {
				t.Fatalf("error=%q want substring %q", eb.Error, tc.wantSub)
			}
		})
	}
	if n := len(sink.events()); n != 0 {
		t.Fatalf("rejected requests published %d events", n)
	}
}

func TestHandleCombine_EmptyCollection(t *testing.T) {
	ops, _ := newOps(t, nil, false)
	fc := decodeFC(t, post(ops.HandleCombine(), "/combine", `{"type":"FeatureCollection","features":[]}`))
	if len(fc.Features) != 0 {
		t.Fatalf("features=%d want 0", len(fc.Features))
	}
}

func TestHandleExplode_EmptyPoint(t *testing.T) {
	ops, sink := newOps(t, nil, false)

	bodies := map[string]string{
		"feature":    `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[]}}`,
		"geometry":   `{"type":"Point","coordinates":[]}`,
		"collection": `{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]},{"type":"Point","coordinates":[]}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rr := post(ops.HandleExplode(), "/explode", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d want 400 body=%s", rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), "empty Point") {
				t.Fatalf("body=%s want empty Point", rr.Body.String())
			}
		})
	}
	if n := len(sink.events()); n != 0 {
		t.Fatalf("rejected requests published %d events", n)
	}
}

func TestHandleExplode_FeatureDropsClosingVertex(t *testing.T) {
	ops, sink := newOps(t, nil, false)

	fc := decodeFC(t, post(ops.HandleExplode(), "/explode", square))
	var got []geom.Coord
	for _, f := range fc.Features {
		p, ok := f.Geometry.(*geom.Point)
		if !ok {
			t.Fatalf("geometry=%T want *geom.Point", f.Geometry)
		}
		if f.Properties != nil {
			t.Fatalf("properties=%v want none by default", f.Properties)
		}
		got = append(got, p.Coords())
	}
	if diff := cmp.Diff([]geom.Coord{{0, 0}, {1, 0}, {1, 1}}, got); diff != "" {
		t.Fatalf("coords mismatch (-want +got):\n%s", diff)
	}

	evs := sink.events()
	if len(evs) != 1 || evs[0].Op != "explode" || evs[0].FeaturesIn != 1 || evs[0].FeaturesOut != 3 {
		t.Fatalf("events=%+v", evs)
	}
}

func TestHandleExplode_PropertiesOption(t *testing.T) {
	ops, _ := newOps(t, nil, true)

	rr := post(ops.HandleExplode(), "/explode?properties=true", square)
	fc := decodeFC(t, rr)
	for _, f := range fc.Features {
		if f.Properties["name"] != "square" {
			t.Fatalf("properties=%v want name=square", f.Properties)
		}
	}

	// the option is part of the cache key
	rr = post(ops.HandleExplode(), "/explode?properties=false", square)
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache=%q want MISS for a different option", rr.Header().Get("X-Cache"))
	}
	for _, f := range decodeFC(t, rr).Features {
		if f.Properties != nil {
			t.Fatalf("properties=%v want none", f.Properties)
		}
	}

	rr = post(ops.HandleExplode(), "/explode?properties=maybe", square)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
}

func TestHandleExplode_ConfiguredDefaults(t *testing.T) {
	ops, _ := newOps(t, func(c *config.Config) {
		c.Explode.KeepProperties = true
		c.Explode.Concurrency = 4
	}, false)

	body := `{"type":"FeatureCollection","features":[` + square + `,` + square + `]}`
	fc := decodeFC(t, post(ops.HandleExplode(), "/explode", body))
	if len(fc.Features) != 6 {
		t.Fatalf("features=%d want 6", len(fc.Features))
	}
	if fc.Features[5].Properties["name"] != "square" {
		t.Fatalf("keep_properties default not applied: %v", fc.Features[5].Properties)
	}
}

func TestHandleExplode_BareGeometry(t *testing.T) {
	ops, _ := newOps(t, nil, false)
	fc := decodeFC(t, post(ops.HandleExplode(), "/explode", `{"type":"MultiPoint","coordinates":[[1,2],[3,4]]}`))
	if len(fc.Features) != 2 {
		t.Fatalf("features=%d want 2", len(fc.Features))
	}
}

func TestHandleExplode_NullGeometry(t *testing.T) {
	ops, _ := newOps(t, nil, false)
	rr := post(ops.HandleExplode(), "/explode", `{"type":"Feature","properties":{},"geometry":null}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "unsupported geometry type null") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestServe_BodyTooLarge(t *testing.T) {
	ops, _ := newOps(t, func(c *config.Config) { c.MaxBodyBytes = 16 }, false)
	rr := post(ops.HandleCombine(), "/combine", twoPoints)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d want 413", rr.Code)
	}
}

func TestServe_CacheFailuresDoNotFailRequests(t *testing.T) {
	cfg := config.Defaults()
	ops := NewGeoOps(discard(), cfg, failingCache{}, nil)

	rr := post(ops.HandleCombine(), "/combine", twoPoints)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200 body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache=%q want MISS", rr.Header().Get("X-Cache"))
	}
}
