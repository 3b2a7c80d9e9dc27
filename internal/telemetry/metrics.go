// Package telemetry exposes pipeline counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "energia"

// Metrics holds the pipeline collectors
type Metrics struct {
	registry *prometheus.Registry

	ingestPairs    *prometheus.CounterVec
	ingestRows     *prometheus.CounterVec
	ingestSkipped  *prometheus.CounterVec
	ingestRuns     *prometheus.CounterVec
	ingestDuration prometheus.Histogram

	correctorRows *prometheus.CounterVec
	correctorRuns *prometheus.CounterVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_pairs_total",
			Help:      "Metric/resource pairs processed by outcome.",
		}, []string{"metrica", "outcome"}),
		ingestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Rows inserted into the metric store.",
		}, []string{"metrica"}),
		ingestSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_skipped_total",
			Help:      "Raw rows dropped by the normalizer.",
		}, []string{"metrica", "reason"}),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by final status.",
		}, []string{"status"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		correctorRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autocorrect_rows_total",
			Help:      "Rows affected (or detected, in dry-run) per correction pass.",
		}, []string{"pass", "dry_run"}),
		correctorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autocorrect_runs_total",
			Help:      "Correction runs by final status.",
		}, []string{"status"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job executions by outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduled job wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status.",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.ingestPairs,
		m.ingestRows,
		m.ingestSkipped,
		m.ingestRuns,
		m.ingestDuration,
		m.correctorRows,
		m.correctorRuns,
		m.jobRuns,
		m.jobDuration,
		m.httpRequests,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Pair records one metric/resource outcome: success, empty or failed
func (m *Metrics) Pair(metrica, outcome string) {
	if m == nil {
		return
	}
	m.ingestPairs.WithLabelValues(metrica, outcome).Inc()
}

// Rows records inserted and skipped rows of one pair
func (m *Metrics) Rows(metrica string, inserted int64, skipped, rejected int) {
	if m == nil {
		return
	}
	if inserted > 0 {
		m.ingestRows.WithLabelValues(metrica).Add(float64(inserted))
	}
	if invalid := skipped - rejected; invalid > 0 {
		m.ingestSkipped.WithLabelValues(metrica, "invalid").Add(float64(invalid))
	}
	if rejected > 0 {
		m.ingestSkipped.WithLabelValues(metrica, "out_of_range").Add(float64(rejected))
	}
}

// IngestRun records the end of an ingestion run
func (m *Metrics) IngestRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(d.Seconds())
}

// CorrectionPass records the count of one correction pass
func (m *Metrics) CorrectionPass(pass string, dryRun bool, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.correctorRows.WithLabelValues(pass, strconv.FormatBool(dryRun)).Add(float64(n))
}

// CorrectionRun records the end of a correction run
func (m *Metrics) CorrectionRun(status string) {
	if m == nil {
		return
	}
	m.correctorRuns.WithLabelValues(status).Inc()
}

// Job records one scheduled job execution
func (m *Metrics) Job(name string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.jobRuns.WithLabelValues(name, outcome).Inc()
	m.jobDuration.WithLabelValues(name).Observe(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests served by next under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}
