// Package metrics defines the Prometheus metric collectors used across the
// statistics pipelines and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipelines and the
// streaming service.
type Metrics struct {
	RecordsExtractedTotal   *prometheus.CounterVec
	ExtractionFailuresTotal *prometheus.CounterVec
	GroupsAggregated        *prometheus.GaugeVec
	AggregationDuration     *prometheus.HistogramVec
	PipelineRunsTotal       *prometheus.CounterVec
	EventsConsumedTotal     *prometheus.CounterVec
	StatsPublishedTotal     prometheus.Counter
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RecordsExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_extracted_total",
				Help: "Total raw records turned into count records, by document kind.",
			},
			[]string{"kind"},
		),
		ExtractionFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_failures_total",
				Help: "Total malformed records rejected during extraction, by document kind.",
			},
			[]string{"kind"},
		),
		GroupsAggregated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "groups_aggregated",
				Help: "Number of (source, year) groups produced by the last pipeline run.",
			},
			[]string{"kind"},
		),
		AggregationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregation_duration_seconds",
				Help:    "Wall time of a full grouped aggregation run, by kind.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		PipelineRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total pipeline invocations by kind and outcome (ok, error).",
			},
			[]string{"kind", "outcome"},
		),
		EventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_consumed_total",
				Help: "Total record events consumed from Kafka, by document kind.",
			},
			[]string{"kind"},
		),
		StatsPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stats_published_total",
				Help: "Total statistics records published to Kafka.",
			},
		),
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
	}

	prometheus.MustRegister(
		m.RecordsExtractedTotal,
		m.ExtractionFailuresTotal,
		m.GroupsAggregated,
		m.AggregationDuration,
		m.PipelineRunsTotal,
		m.EventsConsumedTotal,
		m.StatsPublishedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
