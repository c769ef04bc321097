// Package metrics defines the Prometheus collectors used by the query
// evaluator and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded in QueriesTotal.
const (
	OutcomeOK         = "ok"
	OutcomeZeroResult = "zero_result"
	OutcomeParseError = "parse_error"
	OutcomeEvalError  = "eval_error"
)

// Metrics holds all Prometheus collectors for the evaluator.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	EvaluationLatency    *prometheus.HistogramVec
	ResultsCount         *prometheus.HistogramVec
	ParseWarningsTotal   prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	QueryRequestsTotal   *prometheus.CounterVec
	RunsStoredTotal      *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
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
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qryeval_queries_total",
				Help: "Queries processed by retrieval model and outcome (ok, zero_result, parse_error, eval_error).",
			},
			[]string{"model", "outcome"},
		),
		EvaluationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qryeval_evaluation_seconds",
				Help:    "Time to parse, evaluate and rank one query.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"model"},
		),
		ResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qryeval_matched_documents",
				Help:    "Number of documents matched per query before truncation.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
			[]string{"model"},
		),
		ParseWarningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qryeval_parse_warnings_total",
				Help: "Query tokens dropped by the parser.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		QueryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qryeval_query_requests_total",
				Help: "Query requests consumed from Kafka by status.",
			},
			[]string{"status"},
		),
		RunsStoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qryeval_runs_stored_total",
				Help: "Per-query run rows persisted to Postgres by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.EvaluationLatency,
		m.ResultsCount,
		m.ParseWarningsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.QueryRequestsTotal,
		m.RunsStoredTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a scrape handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
