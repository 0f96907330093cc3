// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SyncRunsTotal        *prometheus.CounterVec
	SyncDuration         *prometheus.HistogramVec
	ProductsUpserted     *prometheus.CounterVec
	UpstreamPagesTotal   *prometheus.CounterVec
	EmbeddingCallsTotal  *prometheus.CounterVec
	CacheReadsTotal      *prometheus.CounterVec
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total sync runs by type (full, stock) and status (completed, failed).",
			},
			[]string{"type", "status"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_duration_seconds",
				Help:    "Sync run duration in seconds by type.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"type"},
		),
		ProductsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "products_upserted_total",
				Help: "Catalog product upserts by outcome (created, updated, failed).",
			},
			[]string{"outcome"},
		),
		UpstreamPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_pages_total",
				Help: "Upstream catalog pages fetched by status (ok, failed).",
			},
			[]string{"status"},
		),
		EmbeddingCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_calls_total",
				Help: "Embedding provider calls by outcome (ok, cached, failed).",
			},
			[]string{"outcome"},
		),
		CacheReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_reads_total",
				Help: "Inventory cache reads by answering tier (hot_cache, shadow_cache, store, live, miss).",
			},
			[]string{"tier"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by mode (vector, fallback, error).",
			},
			[]string{"mode"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds by mode.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"mode"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SyncRunsTotal,
		m.SyncDuration,
		m.ProductsUpserted,
		m.UpstreamPagesTotal,
		m.EmbeddingCallsTotal,
		m.CacheReadsTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
