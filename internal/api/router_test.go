package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/energia/backend/internal/api/handlers"
	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/internal/data/collector"
	"github.com/wonny/energia/backend/internal/data/memstore"
	"github.com/wonny/energia/backend/internal/external/xm"
	"github.com/wonny/energia/backend/internal/metricsconfig"
	"github.com/wonny/energia/backend/internal/scheduler"
	"github.com/wonny/energia/backend/internal/telemetry"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/redis"
)

func day(s string) time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return t
}

type ingesterFunc func(ctx context.Context, opts collector.Options) (*collector.RunResult, error)

func (f ingesterFunc) Run(ctx context.Context, opts collector.Options) (*collector.RunResult, error) {
	return f(ctx, opts)
}

type correctorFunc func(ctx context.Context, dryRun bool) (*autocorrect.Stats, error)

func (f correctorFunc) Run(ctx context.Context, dryRun bool) (*autocorrect.Stats, error) {
	return f(ctx, dryRun)
}

type fakeJobs struct {
	stats     map[string]scheduler.JobStats
	triggered []string
	busy      bool
}

func (f *fakeJobs) GetJobStats() map[string]scheduler.JobStats { return f.stats }

func (f *fakeJobs) RunJob(name string) error {
	if f.busy {
		return errors.New("job " + name + " is already running")
	}
	f.triggered = append(f.triggered, name)
	return nil
}

type testEnv struct {
	router  http.Handler
	store   *memstore.Store
	metrics *telemetry.Metrics
	jobs    *fakeJobs
	lastOpt collector.Options
	dryRun  bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()
	env := &testEnv{
		store:   memstore.New(),
		metrics: telemetry.New(),
		jobs: &fakeJobs{stats: map[string]scheduler.JobStats{
			"ingestion": {JobName: "ingestion", Schedule: "0 0 */6 * * *"},
		}},
	}

	env.store.Seed(
		contracts.Metric{ID: 1, Fecha: day("2026-01-01"), Metrica: "Gene", Entidad: "Sistema", Recurso: contracts.SistemaSentinel, ValorGWh: 210, Unidad: "GWh"},
		contracts.Metric{ID: 2, Fecha: day("2026-01-02"), Metrica: "Gene", Entidad: "Sistema", Recurso: contracts.SistemaSentinel, ValorGWh: 215, Unidad: "GWh"},
		contracts.Metric{ID: 3, Fecha: day("2026-01-02"), Metrica: "Gene", Entidad: "Recurso", Recurso: "PLANTA1", ValorGWh: 4.2, Unidad: "GWh"},
	)

	ingester := ingesterFunc(func(_ context.Context, opts collector.Options) (*collector.RunResult, error) {
		env.lastOpt = opts
		if opts.Mode == collector.ModeFull {
			return &collector.RunResult{Mode: opts.Mode, Status: collector.StatusFailed}, xm.ErrUnavailable
		}
		return &collector.RunResult{Mode: opts.Mode, Status: collector.StatusPartial, Attempted: 5, Succeeded: 4, Failed: 1}, nil
	})
	corrector := correctorFunc(func(_ context.Context, dryRun bool) (*autocorrect.Stats, error) {
		env.dryRun = dryRun
		return &autocorrect.Stats{DryRun: dryRun, DuplicatesDeleted: 2}, nil
	})

	cache := redis.NewCache(redis.Disabled(), "energia")
	env.router = NewRouter(Handlers{
		Metrics:   handlers.NewMetricsHandler(env.store, metricsconfig.Default(), cache, log),
		Pipeline:  handlers.NewPipelineHandler(ingester, corrector, log),
		Scheduler: handlers.NewSchedulerHandler(env.jobs),
	}, []string{"https://tablero.example.co"}, env.metrics, log)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetrics_List(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount int
	}{
		{"all", "/api/metrics", http.StatusOK, 3},
		{"by entity", "/api/metrics?metrica=Gene&entidad=Sistema", http.StatusOK, 2},
		{"by date", "/api/metrics?from=2026-01-02&to=2026-01-02", http.StatusOK, 2},
		{"limit", "/api/metrics?limit=1", http.StatusOK, 1},
		{"bad date", "/api/metrics?from=02/01/2026", http.StatusBadRequest, 0},
		{"inverted range", "/api/metrics?from=2026-01-05&to=2026-01-01", http.StatusBadRequest, 0},
		{"bad limit", "/api/metrics?limit=-3", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Count int                `json:"count"`
				Rows  []contracts.Metric `json:"rows"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCount, body.Count)
			assert.Len(t, body.Rows, tt.wantCount)
		})
	}
}

func TestMetrics_Latest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/metrics/latest?metrica=Gene&entidad=Sistema", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []handlers.LatestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.True(t, out[0].Found)
	assert.Equal(t, "2026-01-02", out[0].Fecha)

	rec = env.do(t, http.MethodGet, "/api/metrics/latest?metrica=Nope&entidad=Sistema", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_CountAndCatalog(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/metrics/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/metrics/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"metric":"PrecBolsNaci"`)
}

func TestPipeline_Ingest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/ingest", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, collector.ModeIncremental, env.lastOpt.Mode)
	assert.Contains(t, rec.Body.String(), `"partial"`)

	rec = env.do(t, http.MethodPost, "/api/ingest", `{"mode":"range","from":"2026-01-01","to":"2026-01-03","resources":["PLANTA1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, day("2026-01-01"), env.lastOpt.From)
	assert.Equal(t, day("2026-01-03"), env.lastOpt.To)
	assert.Equal(t, []string{"PLANTA1"}, env.lastOpt.Resources)

	rec = env.do(t, http.MethodPost, "/api/ingest", `{"mode":"full"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/ingest", `{"mode":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/ingest", `{"mode":"range","from":"2026-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipeline_AutoCorrect(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/autocorrect?dry_run=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.dryRun)
	assert.Contains(t, rec.Body.String(), `"duplicados_eliminados":2`)

	rec = env.do(t, http.MethodPost, "/api/autocorrect?dry_run=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduler_Endpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/scheduler/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ingestion"`)

	rec = env.do(t, http.MethodPost, "/api/scheduler/jobs/ingestion/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"ingestion"}, env.jobs.triggered)

	rec = env.do(t, http.MethodPost, "/api/scheduler/jobs/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.jobs.busy = true
	rec = env.do(t, http.MethodPost, "/api/scheduler/jobs/ingestion/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_CountsRequestsByTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/scheduler/jobs/ingestion/run", "")
	env.do(t, http.MethodPost, "/api/scheduler/jobs/nope/run", "")

	assert.Equal(t, 2, testutil.CollectAndCount(env.metrics.Registry(), "energia_http_requests_total"))

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/scheduler/jobs/{name}/run"`)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/count", nil)
	req.Header.Set("Origin", "https://tablero.example.co")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "https://tablero.example.co", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/metrics/count", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RecoversPanics(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
