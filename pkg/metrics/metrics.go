// Package metrics defines the Prometheus collectors for engine calls, bulk
// batches and the reply cache, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client's Prometheus collectors.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RequestsInFlight    prometheus.Gauge
	BulkActionsTotal    *prometheus.CounterVec
	BulkBatchSize       prometheus.Histogram
	DeadLettersTotal    prometheus.Counter
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchclient_requests_total",
				Help: "Engine requests by method and outcome (success, engine_error, transport_error).",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchclient_request_duration_seconds",
				Help:    "Engine request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "searchclient_requests_in_flight",
				Help: "Engine requests currently awaiting a response.",
			},
		),
		BulkActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchclient_bulk_actions_total",
				Help: "Bulk actions by verb and result (ok, failed).",
			},
			[]string{"verb", "result"},
		),
		BulkBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "searchclient_bulk_batch_size",
				Help:    "Number of actions per bulk request.",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
			},
		),
		DeadLettersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchclient_dead_letters_total",
				Help: "Bulk actions recorded in the dead-letter store.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchclient_cache_hits_total",
				Help: "Reply cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchclient_cache_misses_total",
				Help: "Reply cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "searchclient_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.BulkActionsTotal,
		m.BulkBatchSize,
		m.DeadLettersTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
