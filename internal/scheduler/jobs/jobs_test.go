package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/energia/backend/internal/catalog"
	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/internal/data/collector"
	"github.com/wonny/energia/backend/internal/maintenance"
	"github.com/wonny/energia/backend/internal/prediction"
	"github.com/wonny/energia/backend/pkg/logger"
)

type ingesterFunc func(ctx context.Context) (*collector.RunResult, error)

func (f ingesterFunc) RunIncremental(ctx context.Context) (*collector.RunResult, error) {
	return f(ctx)
}

func TestIngestionJob(t *testing.T) {
	tests := []struct {
		name    string
		result  *collector.RunResult
		err     error
		wantErr bool
	}{
		{"success", &collector.RunResult{Status: collector.StatusSuccess}, nil, false},
		{"partial is not a job failure", &collector.RunResult{Status: collector.StatusPartial, Failed: 1}, nil, false},
		{"store failure fails the job", &collector.RunResult{Status: collector.StatusFailed}, errors.New("metric store failure"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewIngestionJob(ingesterFunc(func(context.Context) (*collector.RunResult, error) {
				return tt.result, tt.err
			}), "0 0 */6 * * *", logger.Nop())

			err := job.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "ingestion", job.Name())
			assert.Equal(t, "0 0 */6 * * *", job.Schedule())
		})
	}
}

type fakeCorrector struct {
	dryRun bool
	err    error
}

func (f *fakeCorrector) Run(_ context.Context, dryRun bool) (*autocorrect.Stats, error) {
	f.dryRun = dryRun
	return &autocorrect.Stats{DryRun: dryRun, DuplicatesDeleted: 2}, f.err
}

type fakeCleaner struct {
	called bool
	err    error
}

func (f *fakeCleaner) Clean(dryRun bool) (*maintenance.LogCleanupResult, error) {
	f.called = true
	return &maintenance.LogCleanupResult{DryRun: dryRun}, f.err
}

func TestMaintenanceJob_CleanupRunsAfterFailedCorrection(t *testing.T) {
	corrector := &fakeCorrector{err: errors.New("duplicates: lock timeout")}
	cleaner := &fakeCleaner{}

	job := NewMaintenanceJob(corrector, cleaner, "0 30 3 * * *", false, logger.Nop())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto-correction")
	assert.True(t, cleaner.called)
	assert.False(t, corrector.dryRun)
}

func TestMaintenanceJob_DryRun(t *testing.T) {
	corrector := &fakeCorrector{}
	job := NewMaintenanceJob(corrector, nil, "0 30 3 * * *", true, logger.Nop())
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, corrector.dryRun)
}

type staleCounter struct{ n int }

func (s *staleCounter) CleanStale() int { s.n++; return 1 }

func TestCacheCleanupJob(t *testing.T) {
	a, b := &staleCounter{}, &staleCounter{}
	job := NewCacheCleanupJob(map[string]StaleCleaner{"xm": a, "listings": b}, logger.Nop())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

type refresherFunc func(ctx context.Context, listings ...string) (*catalog.RefreshResult, error)

func (f refresherFunc) Refresh(ctx context.Context, listings ...string) (*catalog.RefreshResult, error) {
	return f(ctx, listings...)
}

func TestCatalogRefreshJob(t *testing.T) {
	job := NewCatalogRefreshJob(refresherFunc(func(context.Context, ...string) (*catalog.RefreshResult, error) {
		return &catalog.RefreshResult{Upserted: map[string]int64{catalog.ListadoRecursos: 3}}, errors.New("fetch ListadoRios: 503")
	}), "0 0 2 * * 0", logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}

type validatorFunc func(ctx context.Context, days int) (*prediction.Report, error)

func (f validatorFunc) Validate(ctx context.Context, days int) (*prediction.Report, error) {
	return f(ctx, days)
}

func TestPredictionValidationJob(t *testing.T) {
	var gotDays int
	job := NewPredictionValidationJob(validatorFunc(func(_ context.Context, days int) (*prediction.Report, error) {
		gotDays = days
		return &prediction.Report{Alerts: []prediction.Alert{{Fuente: "Solar", MAPE: 0.3}}}, nil
	}), 30, logger.Nop())

	require.NoError(t, job.Run(context.Background()), "alerts do not fail the job")
	assert.Equal(t, 30, gotDays)
}
