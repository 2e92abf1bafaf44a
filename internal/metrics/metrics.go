// Package metrics holds the Prometheus collectors for the runtime.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apilink",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apilink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apilink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apilink",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of operation calls made by the HTTP transport.",
		},
		[]string{"method", "operation", "status"},
	)

	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apilink",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of operation calls made by the HTTP transport.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "operation"},
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apilink",
			Subsystem: "querycache",
			Name:      "hits_total",
			Help:      "Reads served from a fresh cache entry without a fetch.",
		},
	)

	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apilink",
			Subsystem: "querycache",
			Name:      "misses_total",
			Help:      "Reads that started a new fetch.",
		},
	)

	cacheFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apilink",
			Subsystem: "querycache",
			Name:      "fetches_total",
			Help:      "Completed cache fetches by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		clientRequests,
		clientDuration,
		cacheHits,
		cacheMisses,
		cacheFetches,
	)
}

// Handler returns the HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight increments the in-flight HTTP request gauge.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight decrements the in-flight HTTP request gauge.
func DecInFlight() { httpInFlight.Dec() }

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveClientRequest records one outgoing transport call. Status 0 means
// the request never produced a response.
func ObserveClientRequest(method, operation string, status int, duration time.Duration) {
	clientRequests.WithLabelValues(method, operation, strconv.Itoa(status)).Inc()
	clientDuration.WithLabelValues(method, operation).Observe(duration.Seconds())
}

// CacheRecorder feeds query cache events into the collectors. It satisfies
// the cache engine's Recorder interface.
type CacheRecorder struct{}

// CacheHit records a read served from cache.
func (CacheRecorder) CacheHit() { cacheHits.Inc() }

// CacheMiss records a read that started a fetch.
func (CacheRecorder) CacheMiss() { cacheMisses.Inc() }

// FetchDone records a completed fetch.
func (CacheRecorder) FetchDone(failed bool) {
	outcome := "success"
	if failed {
		outcome = "error"
	}
	cacheFetches.WithLabelValues(outcome).Inc()
}
