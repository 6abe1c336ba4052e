package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mohammed-shakir/geoconvert/internal/cache"
	"github.com/mohammed-shakir/geoconvert/internal/cache/keys"
	"github.com/mohammed-shakir/geoconvert/internal/combine"
	"github.com/mohammed-shakir/geoconvert/internal/core/config"
	"github.com/mohammed-shakir/geoconvert/internal/core/observability"
	"github.com/mohammed-shakir/geoconvert/internal/explode"
	"github.com/mohammed-shakir/geoconvert/internal/logger"
	"github.com/mohammed-shakir/geoconvert/internal/opevents"
)

// GeoOps serves the geometry operations with an optional result cache and
// event sink.
type GeoOps struct {
	log         *slog.Logger
	cache       cache.Interface
	events      opevents.Sink
	ttl         time.Duration
	opTimeout   time.Duration
	maxBody     int64
	concurrency int
	keepProps   bool
}

// NewGeoOps wires the operations. A nil cache or sink disables that concern.
func NewGeoOps(log *slog.Logger, cfg config.Config, c cache.Interface, ev opevents.Sink) *GeoOps {
	if log == nil {
		log = slog.Default()
	}
	if c == nil {
		c = cache.Noop{}
	}
	if ev == nil {
		ev = opevents.Nop{}
	}
	return &GeoOps{
		log:         log,
		cache:       c,
		events:      ev,
		ttl:         cfg.Cache.TTL,
		opTimeout:   cfg.Cache.OpTimeout,
		maxBody:     cfg.MaxBodyBytes,
		concurrency: cfg.Explode.Concurrency,
		keepProps:   cfg.Explode.KeepProperties,
	}
}

// cachedResult is the value stored in the result cache.
type cachedResult struct {
	In   int             `json:"in"`
	Out  int             `json:"out"`
	Body json.RawMessage `json:"body"`
}

type opFunc func(body []byte) (out *geojson.FeatureCollection, in int, err error)

// HandleCombine serves POST /combine.
func (g *GeoOps) HandleCombine() http.HandlerFunc {
	return instrument("/combine", func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, "combine", "", func(body []byte) (*geojson.FeatureCollection, int, error) {
			typ, err := peekType(body)
			if err != nil {
				return nil, 0, err
			}
			if typ != "FeatureCollection" {
				return nil, 0, badRequest("combine expects a FeatureCollection, got %q", typ)
			}
			var fc geojson.FeatureCollection
			if err := json.Unmarshal(body, &fc); err != nil {
				return nil, 0, badRequest("decode FeatureCollection: %v", err)
			}
			out, err := combine.Combine(&fc)
			return out, len(fc.Features), err
		})
	})
}

// HandleExplode serves POST /explode. The body may be a Feature, a
// FeatureCollection or a bare geometry. properties=true|false overrides the
// configured keep-properties default.
func (g *GeoOps) HandleExplode() http.HandlerFunc {
	return instrument("/explode", func(w http.ResponseWriter, r *http.Request) {
		keep := g.keepProps
		if raw := strings.TrimSpace(r.URL.Query().Get("properties")); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, badRequest("properties: %v", err))
				return
			}
			keep = b
		}
		opts := "properties=" + strconv.FormatBool(keep)
		g.serve(w, r, "explode", opts, func(body []byte) (*geojson.FeatureCollection, int, error) {
			return ExplodeBody(body, explode.WithKeepProperties(keep), explode.WithConcurrency(g.concurrency))
		})
	})
}

// ExplodeBody dispatches on the GeoJSON "type" member of body. It returns the
// exploded points and the number of input features.
func ExplodeBody(body []byte, opts ...explode.Option) (*geojson.FeatureCollection, int, error) {
	typ, err := peekType(body)
	if err != nil {
		return nil, 0, err
	}

	switch typ {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(body, &fc); err != nil {
			return nil, 0, badRequest("decode FeatureCollection: %v", err)
		}
		out, err := explode.FeatureCollection(&fc, opts...)
		return out, len(fc.Features), err
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(body, &f); err != nil {
			return nil, 0, badRequest("decode Feature: %v", err)
		}
		out, err := explode.Feature(&f, opts...)
		return out, 1, err
	default:
		var gt geom.T
		if err := geojson.Unmarshal(body, &gt); err != nil {
			return nil, 0, badRequest("decode geometry: %v", err)
		}
		out, err := explode.Feature(&geojson.Feature{Geometry: gt}, opts...)
		return out, 1, err
	}
}

func peekType(body []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return "", badRequest("decode GeoJSON: %v", err)
	}
	if head.Type == "" {
		return "", badRequest(`missing GeoJSON "type"`)
	}
	return head.Type, nil
}

func (g *GeoOps) serve(w http.ResponseWriter, r *http.Request, op, opts string, fn opFunc) {
	start := time.Now()
	ctx := logger.WithOp(r.Context(), op)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = badRequest("read body: %v", err)
		}
		observability.ObserveOperation(op, outcome(err), time.Since(start).Seconds())
		writeError(w, err)
		return
	}

	key := keys.Key(op, opts, body)
	if res, ok := g.lookup(ctx, op, key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeRaw(w, http.StatusOK, res.Body)
		g.finish(ctx, op, res.In, res.Out, true, start, nil)
		return
	}

	out, in, err := fn(body)
	if err != nil {
		g.finish(ctx, op, in, 0, false, start, err)
		writeError(w, err)
		return
	}

	b, err := json.Marshal(out)
	if err != nil {
		err = fmt.Errorf("encode FeatureCollection: %w", err)
		g.finish(ctx, op, in, 0, false, start, err)
		writeError(w, err)
		return
	}

	g.store(ctx, key, cachedResult{In: in, Out: len(out.Features), Body: b})
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, b)
	g.finish(ctx, op, in, len(out.Features), false, start, nil)
}

func (g *GeoOps) finish(ctx context.Context, op string, in, out int, cached bool, start time.Time, err error) {
	elapsed := time.Since(start)
	observability.ObserveOperation(op, outcome(err), elapsed.Seconds())
	if err != nil {
		g.log.DebugContext(ctx, "operation rejected", "err", err, "status", StatusFor(err))
		return
	}
	observability.AddFeatures(op, in, out)
	g.events.Publish(opevents.Event{
		Op:          op,
		FeaturesIn:  in,
		FeaturesOut: out,
		Cached:      cached,
		Duration:    float64(elapsed.Microseconds()) / 1000,
		RequestID:   logger.RequestID(ctx),
	})
}

func (g *GeoOps) cacheCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.opTimeout)
}

// lookup reports a miss on any cache failure.
func (g *GeoOps) lookup(ctx context.Context, op, key string) (cachedResult, bool) {
	if _, ok := g.cache.(cache.Noop); ok {
		return cachedResult{}, false
	}
	cctx, cancel := g.cacheCtx(ctx)
	defer cancel()

	raw, ok, err := g.cache.Get(cctx, key)
	if err != nil {
		g.log.WarnContext(ctx, "cache get failed", "err", err)
		observability.IncCacheMiss(op)
		return cachedResult{}, false
	}
	if !ok {
		observability.IncCacheMiss(op)
		return cachedResult{}, false
	}
	var res cachedResult
	if err := json.Unmarshal(raw, &res); err != nil || len(res.Body) == 0 {
		g.log.WarnContext(ctx, "cache entry unreadable", "err", err, "key", key)
		observability.IncCacheMiss(op)
		return cachedResult{}, false
	}
	observability.IncCacheHit(op)
	return res, true
}

func (g *GeoOps) store(ctx context.Context, key string, res cachedResult) {
	if _, ok := g.cache.(cache.Noop); ok {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		g.log.WarnContext(ctx, "cache entry encode failed", "err", err)
		return
	}
	cctx, cancel := g.cacheCtx(ctx)
	defer cancel()
	if err := g.cache.Set(cctx, key, b, g.ttl); err != nil {
		g.log.WarnContext(ctx, "cache set failed", "err", err)
	}
}
