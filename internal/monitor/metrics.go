package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the alert pipeline
type Metrics struct {
	registry *prometheus.Registry

	AlertsIngested       prometheus.Counter
	IncidentsCreated     prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	FeedPollErrors       *prometheus.CounterVec
	ArchiveRuns          prometheus.Counter
	RowsArchived         *prometheus.CounterVec
	BatchSize            prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		AlertsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barometer_alerts_ingested_total",
			Help: "Total external alerts handed to the ingest processor",
		}),
		IncidentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barometer_incidents_created_total",
			Help: "Total incidents created from external alerts",
		}),
		DuplicatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barometer_duplicates_suppressed_total",
			Help: "Total alerts suppressed by the dedup window",
		}),
		FeedPollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barometer_feed_poll_errors_total",
			Help: "Total feed polling failures by feed name",
		}, []string{"feed"}),
		ArchiveRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barometer_archive_runs_total",
			Help: "Total archiving rule evaluations",
		}),
		RowsArchived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barometer_rows_archived_total",
			Help: "Total rows bulk-archived by table",
		}, []string{"table"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "barometer_ingest_batch_size",
			Help:    "Alert counts per ingest batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	registry.MustRegister(
		m.AlertsIngested,
		m.IncidentsCreated,
		m.DuplicatesSuppressed,
		m.FeedPollErrors,
		m.ArchiveRuns,
		m.RowsArchived,
		m.BatchSize,
	)

	return m
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
