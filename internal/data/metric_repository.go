package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/energia/backend/internal/contracts"
)

// MetricRepository implements contracts.MetricStore on PostgreSQL
// ⭐ SSOT: the metrics table is accessed here only
type MetricRepository struct {
	pool *pgxpool.Pool
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(pool *pgxpool.Pool) *MetricRepository {
	return &MetricRepository{pool: pool}
}

const metricColumns = `id, fecha, metrica, entidad, recurso, valor_gwh, unidad, fecha_actualizacion`

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, contracts.ErrStore, err)
}

// Insert appends rows in one batch round trip. Rows are never merged with
// existing ones; duplicate keys are left to the auto-corrector.
func (r *MetricRepository) Insert(ctx context.Context, rows []contracts.Metric) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO metrics (fecha, metrica, entidad, recurso, valor_gwh, unidad, fecha_actualizacion)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, m := range rows {
		unidad := m.Unidad
		if unidad == "" {
			unidad = contracts.DefaultUnit
		}
		updated := m.FechaActualizacion
		if updated.IsZero() {
			updated = time.Now()
		}
		batch.Queue(query, contracts.Day(m.Fecha), m.Metrica, m.Entidad, m.Recurso, m.ValorGWh, unidad, updated)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, storeErr("begin insert", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, storeErr("insert metrics", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, storeErr("close insert batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeErr("commit insert", err)
	}
	return inserted, nil
}

// Query returns rows matching the read-side filter ordered by fecha
func (r *MetricRepository) Query(ctx context.Context, f contracts.Filter) ([]contracts.Metric, error) {
	var where []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Metrica != "" {
		add("metrica = $%d", f.Metrica)
	}
	if f.Entidad != "" {
		add("entidad = $%d", f.Entidad)
	}
	if f.Recurso != "" {
		add("recurso = $%d", f.Recurso)
	}
	if !f.From.IsZero() {
		add("fecha >= $%d", contracts.Day(f.From))
	}
	if !f.To.IsZero() {
		add("fecha <= $%d", contracts.Day(f.To))
	}

	query := `SELECT ` + metricColumns + ` FROM metrics`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY fecha ASC, recurso ASC, id ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query metrics", err)
	}
	return scanMetrics(rows)
}

// LatestDate returns the newest fecha stored for metrica/entidad
func (r *MetricRepository) LatestDate(ctx context.Context, metrica, entidad string) (time.Time, bool, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(fecha) FROM metrics WHERE metrica = $1 AND entidad = $2`,
		metrica, entidad,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, storeErr("latest date", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// Count returns the number of rows in the table
func (r *MetricRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM metrics`).Scan(&n); err != nil {
		return 0, storeErr("count metrics", err)
	}
	return n, nil
}

// WithTx runs fn in a repeatable-read transaction so detection and fix
// inside one correction pass see the same snapshot
func (r *MetricRepository) WithTx(ctx context.Context, fn func(tx contracts.MetricTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&metricTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

type metricTx struct {
	tx pgx.Tx
}

func (t *metricTx) Find(ctx context.Context, s contracts.Selector) ([]contracts.Metric, error) {
	where, args := selectorSQL(s)

	query := `SELECT ` + metricColumns + ` FROM metrics`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY id ASC`

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("find metrics", err)
	}
	return scanMetrics(rows)
}

func (t *metricTx) DuplicateGroups(ctx context.Context) ([]contracts.DuplicateGroup, error) {
	query := `
		SELECT metrica, entidad, recurso, fecha, array_agg(id ORDER BY id)
		FROM metrics
		GROUP BY metrica, entidad, recurso, fecha
		HAVING COUNT(*) > 1
		ORDER BY metrica, entidad, recurso, fecha
	`

	rows, err := t.tx.Query(ctx, query)
	if err != nil {
		return nil, storeErr("find duplicates", err)
	}
	defer rows.Close()

	var groups []contracts.DuplicateGroup
	for rows.Next() {
		var g contracts.DuplicateGroup
		var fecha time.Time
		if err := rows.Scan(&g.Key.Metrica, &g.Key.Entidad, &g.Key.Recurso, &fecha, &g.IDs); err != nil {
			return nil, storeErr("scan duplicate group", err)
		}
		g.Key.Fecha = fecha.Format(contracts.DateLayout)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate duplicates", err)
	}
	return groups, nil
}

func (t *metricTx) DeleteIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM metrics WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, storeErr("delete metrics", err)
	}
	return tag.RowsAffected(), nil
}

func (t *metricTx) SetRecurso(ctx context.Context, ids []int64, recurso string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `UPDATE metrics SET recurso = $2 WHERE id = ANY($1)`, ids, recurso)
	if err != nil {
		return 0, storeErr("update recurso", err)
	}
	return tag.RowsAffected(), nil
}

// selectorSQL renders a Selector as a WHERE clause
func selectorSQL(s contracts.Selector) (string, []interface{}) {
	var where []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if s.FechaAfter != nil {
		add("fecha > $%d", contracts.Day(*s.FechaAfter))
	}
	if s.FechaFrom != nil {
		add("fecha >= $%d", contracts.Day(*s.FechaFrom))
	}
	if s.FechaTo != nil {
		add("fecha <= $%d", contracts.Day(*s.FechaTo))
	}
	if s.ValueBelow != nil {
		add("valor_gwh < $%d", *s.ValueBelow)
	}
	if s.ValueAbove != nil {
		add("valor_gwh > $%d", *s.ValueAbove)
	}
	if s.Metrica != "" {
		add("metrica = $%d", s.Metrica)
	}
	if s.Recurso != "" {
		add("recurso = $%d", s.Recurso)
	}
	if s.RecursoFold != "" {
		add("LOWER(recurso) = LOWER($%d)", s.RecursoFold)
	}

	return strings.Join(where, " AND "), args
}

func scanMetrics(rows pgx.Rows) ([]contracts.Metric, error) {
	defer rows.Close()

	var out []contracts.Metric
	for rows.Next() {
		var m contracts.Metric
		if err := rows.Scan(&m.ID, &m.Fecha, &m.Metrica, &m.Entidad, &m.Recurso, &m.ValorGWh, &m.Unidad, &m.FechaActualizacion); err != nil {
			return nil, storeErr("scan metric", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate metrics", err)
	}
	return out, nil
}
