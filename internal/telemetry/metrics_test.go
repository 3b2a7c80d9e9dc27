package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Pair("Gene", "success")
	m.Pair("Gene", "success")
	m.Pair("Gene", "failed")
	m.Rows("Gene", 48, 3, 1)
	m.CorrectionPass("dedup", false, 2)
	m.CorrectionPass("future", true, 0)
	m.Job("ingest", errors.New("boom"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestPairs.WithLabelValues("Gene", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestPairs.WithLabelValues("Gene", "failed")))
	assert.Equal(t, 48.0, testutil.ToFloat64(m.ingestRows.WithLabelValues("Gene")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestSkipped.WithLabelValues("Gene", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestSkipped.WithLabelValues("Gene", "out_of_range")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.correctorRows.WithLabelValues("dedup", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("ingest", "failed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Pair("Gene", "success")
		m.Rows("Gene", 1, 1, 1)
		m.IngestRun("success", time.Second)
		m.CorrectionPass("dedup", true, 1)
		m.CorrectionRun("success")
		m.Job("x", nil, time.Second)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_HandlerAndWrap(t *testing.T) {
	m := New()
	m.IngestRun("partial", 3*time.Second)

	wrapped := m.WrapHandler("/api/test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/test", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/test", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `energia_ingest_runs_total{status="partial"} 1`)
}
