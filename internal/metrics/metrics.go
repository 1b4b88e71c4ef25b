// Package metrics exports engine, cache and HTTP events as Prometheus
// metrics by implementing the observability hooks.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/lanegrid/pkg/observability"
)

const namespace = "lanegrid"

// Metrics holds every collector and implements the engine, cache and HTTP
// hook interfaces.
type Metrics struct {
	Placements    *prometheus.CounterVec
	Displacements prometheus.Counter
	PlaceDuration prometheus.Histogram
	Removals      prometheus.Counter
	Reloads       *prometheus.CounterVec
	CompactSize   *prometheus.GaugeVec

	CacheRequests *prometheus.CounterVec
	CacheBytes    *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "placements_total",
			Help:      "Top-level placements by result.",
		}, []string{"result"}),
		Displacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "displacements_total",
			Help:      "Items pushed below another item during placement.",
		}),
		PlaceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "place_duration_seconds",
			Help:      "Duration of top-level placements in seconds.",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}),
		Removals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "removals_total",
			Help:      "Items removed from a grid.",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "reloads_total",
			Help:      "Grid reloads by result.",
		}, []string{"result"}),
		CompactSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "compacted_lanes",
			Help:      "Grid extent per axis after the last compaction.",
		}, []string{"axis"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key type and result.",
		}, []string{"key_type", "result"}),
		CacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache by key type.",
		}, []string{"key_type"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(
		m.Placements, m.Displacements, m.PlaceDuration, m.Removals, m.Reloads, m.CompactSize,
		m.CacheRequests, m.CacheBytes,
		m.HTTPRequests, m.HTTPDuration, m.HTTPInFlight,
	)
	return m
}

// Install registers m as the global engine, cache and HTTP hooks.
func (m *Metrics) Install() {
	observability.SetEngineHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// =============================================================================
// Engine Hooks
// =============================================================================

func (m *Metrics) OnPlace(_ string, displaced int, d time.Duration, err error) {
	m.Placements.WithLabelValues(result(err)).Inc()
	m.Displacements.Add(float64(displaced))
	m.PlaceDuration.Observe(d.Seconds())
}

func (m *Metrics) OnRemove(string) { m.Removals.Inc() }

func (m *Metrics) OnReload(_ int, _ time.Duration, err error) {
	m.Reloads.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) OnCompact(sizeX, sizeY int) {
	m.CompactSize.WithLabelValues("x").Set(float64(sizeX))
	m.CompactSize.WithLabelValues("y").Set(float64(sizeY))
}

// =============================================================================
// Cache Hooks
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// =============================================================================
// HTTP Hooks
// =============================================================================

func (m *Metrics) OnRequest(context.Context, string, string) { m.HTTPInFlight.Inc() }

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.HTTPInFlight.Dec()
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ observability.EngineHooks = (*Metrics)(nil)
	_ observability.CacheHooks  = (*Metrics)(nil)
	_ observability.HTTPHooks   = (*Metrics)(nil)
)
