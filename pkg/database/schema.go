package database

import (
	"context"
	"fmt"
)

// schema is applied idempotently by Migrate.
// metrics carries no unique constraint on its logical key: ingestion is
// append-only and duplicate collapse belongs to the auto-corrector.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS metrics (
		id                  BIGSERIAL PRIMARY KEY,
		fecha               DATE NOT NULL,
		metrica             TEXT NOT NULL,
		entidad             TEXT NOT NULL,
		recurso             TEXT NOT NULL,
		valor_gwh           DOUBLE PRECISION NOT NULL,
		unidad              TEXT NOT NULL DEFAULT 'GWh',
		fecha_actualizacion TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_key ON metrics (metrica, entidad, recurso, fecha)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_fecha ON metrics (fecha)`,

	`CREATE TABLE IF NOT EXISTS catalogs (
		catalogo            TEXT NOT NULL,
		codigo              TEXT NOT NULL,
		nombre              TEXT NOT NULL DEFAULT '',
		tipo                TEXT NOT NULL DEFAULT '',
		region              TEXT NOT NULL DEFAULT '',
		capacidad           DOUBLE PRECISION,
		fecha_actualizacion TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (catalogo, codigo)
	)`,

	`CREATE TABLE IF NOT EXISTS predictions (
		id                 BIGSERIAL PRIMARY KEY,
		fecha_prediccion   DATE NOT NULL,
		fuente             TEXT NOT NULL,
		horizonte_dias     INTEGER NOT NULL DEFAULT 1,
		valor_gwh_predicho DOUBLE PRECISION NOT NULL,
		intervalo_inferior DOUBLE PRECISION,
		intervalo_superior DOUBLE PRECISION,
		modelo             TEXT NOT NULL DEFAULT '',
		fecha_generacion   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_fuente_fecha ON predictions (fuente, fecha_prediccion)`,
}

// Migrate creates the pipeline tables when missing
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
