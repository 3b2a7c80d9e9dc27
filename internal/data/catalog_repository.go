package data

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/energia/backend/internal/contracts"
)

// CatalogRepository implements contracts.CatalogRepository
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Upsert replaces listing entries by (catalogo, codigo)
func (r *CatalogRepository) Upsert(ctx context.Context, resources []contracts.Resource) (int64, error) {
	if len(resources) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO catalogs (catalogo, codigo, nombre, tipo, region, capacidad, fecha_actualizacion)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (catalogo, codigo) DO UPDATE SET
			nombre = EXCLUDED.nombre,
			tipo = EXCLUDED.tipo,
			region = EXCLUDED.region,
			capacidad = EXCLUDED.capacidad,
			fecha_actualizacion = EXCLUDED.fecha_actualizacion
	`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, res := range resources {
		batch.Queue(query, res.Catalogo, res.Codigo, res.Nombre, res.Tipo, res.Region, res.Capacidad, now)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var n int64
	for range resources {
		tag, err := results.Exec()
		if err != nil {
			return n, storeErr("upsert catalog", err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

// List returns every entry of a listing ordered by code
func (r *CatalogRepository) List(ctx context.Context, catalogo string) ([]contracts.Resource, error) {
	query := `
		SELECT catalogo, codigo, nombre, tipo, region, capacidad, fecha_actualizacion
		FROM catalogs
		WHERE catalogo = $1
		ORDER BY codigo
	`

	rows, err := r.pool.Query(ctx, query, catalogo)
	if err != nil {
		return nil, storeErr("list catalog", err)
	}
	defer rows.Close()

	var out []contracts.Resource
	for rows.Next() {
		var res contracts.Resource
		if err := rows.Scan(&res.Catalogo, &res.Codigo, &res.Nombre, &res.Tipo, &res.Region, &res.Capacidad, &res.FechaActualizacion); err != nil {
			return nil, storeErr("scan catalog", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate catalog", err)
	}
	return out, nil
}
