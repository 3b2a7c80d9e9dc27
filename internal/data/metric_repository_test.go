package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/pkg/config"
	"github.com/wonny/energia/backend/pkg/database"
	"github.com/wonny/energia/backend/pkg/logger"
)

// openTestRepo runs against a scratch database; it truncates metrics
func openTestRepo(t *testing.T) *MetricRepository {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, url, config.DatabaseConfig{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE metrics RESTART IDENTITY`)
	require.NoError(t, err)

	return NewMetricRepository(db.Pool)
}

func TestMetricRepository_InsertQueryLatest(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	d := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	n, err := repo.Insert(ctx, []contracts.Metric{
		{Fecha: d, Metrica: "Gene", Entidad: "Sistema", Recurso: contracts.SistemaSentinel, ValorGWh: 210},
		{Fecha: d.AddDate(0, 0, 1), Metrica: "Gene", Entidad: "Sistema", Recurso: contracts.SistemaSentinel, ValorGWh: 212},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := repo.Query(ctx, contracts.Filter{Metrica: "Gene", Entidad: "Sistema"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, contracts.DefaultUnit, rows[0].Unidad)

	latest, found, err := repo.LatestDate(ctx, "Gene", "Sistema")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2026-01-06", latest.Format(contracts.DateLayout))

	_, found, err = repo.LatestDate(ctx, "DemaCome", "Sistema")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMetricRepository_AutoCorrect(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	d := time.Now().UTC().AddDate(0, 0, -2)

	_, err := repo.Insert(ctx, []contracts.Metric{
		{Fecha: d, Metrica: "Gene", Entidad: "Recurso", Recurso: "PLANTA1", ValorGWh: 50},
		{Fecha: d, Metrica: "Gene", Entidad: "Recurso", Recurso: "PLANTA1", ValorGWh: 52},
		{Fecha: d, Metrica: "Gene", Entidad: "Recurso", Recurso: "PLANTA1", ValorGWh: 51},
		{Fecha: d, Metrica: "Gene", Entidad: "Sistema", Recurso: "Sistema", ValorGWh: 210},
		{Fecha: d, Metrica: "Gene", Entidad: "Recurso", Recurso: "PLANTA2", ValorGWh: 15000},
		{Fecha: d, Metrica: "DemaCome", Entidad: "Agente", Recurso: "AG1", ValorGWh: -5},
		{Fecha: time.Now().UTC().AddDate(0, 0, 5), Metrica: "Gene", Entidad: "Sistema", Recurso: contracts.SistemaSentinel, ValorGWh: 200},
	})
	require.NoError(t, err)

	corrector := autocorrect.New(repo, autocorrect.Config{}, nil, logger.Nop())

	dry, err := corrector.Run(ctx, true)
	require.NoError(t, err)
	before, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), before, "dry run does not mutate")

	applied, err := corrector.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, dry.Changes(), applied.Changes())
	assert.Equal(t, int64(1), applied.FutureDeleted)
	assert.Equal(t, int64(2), applied.DuplicatesDeleted)
	assert.Equal(t, int64(1), applied.ResourcesNormalized)
	assert.Equal(t, int64(2), applied.AnomaliesDeleted())

	rows, err := repo.Query(ctx, contracts.Filter{Recurso: "PLANTA1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 51.0, rows[0].ValorGWh)
	assert.Equal(t, int64(3), rows[0].ID)

	rows, err = repo.Query(ctx, contracts.Filter{Metrica: "Gene", Entidad: "Sistema"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, contracts.SistemaSentinel, rows[0].Recurso)
}
