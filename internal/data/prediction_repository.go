package data

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/energia/backend/internal/contracts"
)

// PredictionRepository implements contracts.PredictionRepository
type PredictionRepository struct {
	pool *pgxpool.Pool
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(pool *pgxpool.Pool) *PredictionRepository {
	return &PredictionRepository{pool: pool}
}

// Predictions returns forecasts of fuente whose target date is in [from, to]
func (r *PredictionRepository) Predictions(ctx context.Context, fuente string, from, to time.Time) ([]contracts.Prediction, error) {
	query := `
		SELECT id, fecha_prediccion, fuente, horizonte_dias, valor_gwh_predicho,
		       intervalo_inferior, intervalo_superior, modelo
		FROM predictions
		WHERE fuente = $1 AND fecha_prediccion BETWEEN $2 AND $3
		ORDER BY fecha_prediccion
	`

	rows, err := r.pool.Query(ctx, query, fuente, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, storeErr("query predictions", err)
	}
	defer rows.Close()

	var out []contracts.Prediction
	for rows.Next() {
		var p contracts.Prediction
		if err := rows.Scan(&p.ID, &p.FechaPrediccion, &p.Fuente, &p.HorizonteDias, &p.ValorGWhPredicho,
			&p.IntervaloInferior, &p.IntervaloSuperior, &p.Modelo); err != nil {
			return nil, storeErr("scan prediction", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate predictions", err)
	}
	return out, nil
}

// Observations sums positive daily generation of every resource whose
// listing type is tipo
func (r *PredictionRepository) Observations(ctx context.Context, tipo string, from, to time.Time) ([]contracts.Observation, error) {
	query := `
		SELECT m.fecha, SUM(m.valor_gwh)
		FROM metrics m
		JOIN catalogs c ON c.codigo = m.recurso AND c.catalogo = 'ListadoRecursos'
		WHERE m.metrica = 'Gene'
		  AND UPPER(c.tipo) = UPPER($1)
		  AND m.fecha BETWEEN $2 AND $3
		  AND m.valor_gwh > 0
		GROUP BY m.fecha
		ORDER BY m.fecha
	`

	rows, err := r.pool.Query(ctx, query, tipo, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, storeErr("query observations", err)
	}
	defer rows.Close()

	var out []contracts.Observation
	for rows.Next() {
		var o contracts.Observation
		if err := rows.Scan(&o.Fecha, &o.Valor); err != nil {
			return nil, storeErr("scan observation", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate observations", err)
	}
	return out, nil
}

// Save appends forecasts
func (r *PredictionRepository) Save(ctx context.Context, preds []contracts.Prediction) (int64, error) {
	if len(preds) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO predictions (fecha_prediccion, fuente, horizonte_dias, valor_gwh_predicho,
		                         intervalo_inferior, intervalo_superior, modelo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, p := range preds {
		batch.Queue(query, contracts.Day(p.FechaPrediccion), p.Fuente, p.HorizonteDias, p.ValorGWhPredicho,
			p.IntervaloInferior, p.IntervaloSuperior, p.Modelo)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var n int64
	for range preds {
		tag, err := results.Exec()
		if err != nil {
			return n, storeErr("insert prediction", err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}
