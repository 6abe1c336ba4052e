// Package observability records Prometheus metrics for the HTTP surface, the
// geometry operations and the result cache.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geoconvert"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Geometry and unit operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	operationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent inside geometry operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"op"},
	)

	featuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_total",
			Help:      "Features consumed and produced by geometry operations.",
		},
		[]string{"op", "direction"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_results_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"op", "outcome"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_op_duration_seconds",
			Help:      "Latency of result cache backend calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"op", "result"},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Operation events dropped because the publish queue was full.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(Collectors()...)
}

// Collectors returns every collector of this package, for registration on a
// private registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		operationsTotal,
		operationDurationSeconds,
		featuresTotal,
		cacheResults,
		cacheOpDurationSeconds,
		eventsDropped,
		buildInfo,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveOperation records one call of op. outcome is "ok" or an error class.
func ObserveOperation(op, outcome string, durationSeconds float64) {
	operationsTotal.WithLabelValues(op, outcome).Inc()
	operationDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func AddFeatures(op string, in, out int) {
	if in > 0 {
		featuresTotal.WithLabelValues(op, "in").Add(float64(in))
	}
	if out > 0 {
		featuresTotal.WithLabelValues(op, "out").Add(float64(out))
	}
}

func IncCacheHit(op string) {
	cacheResults.WithLabelValues(op, "hit").Inc()
}

func IncCacheMiss(op string) {
	cacheResults.WithLabelValues(op, "miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpDurationSeconds.WithLabelValues(op, res).Observe(durationSeconds)
}

func IncEventsDropped() {
	eventsDropped.Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
