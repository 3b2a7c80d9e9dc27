// Package autocorrect enforces metric store invariants: no future dates,
// one row per logical key, a canonical system resource and plausible values.
package autocorrect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/telemetry"
	"github.com/wonny/energia/backend/pkg/logger"
)

// Pass names, in execution order
const (
	PassFuture    = "future_dates"
	PassDedup     = "duplicates"
	PassNormalize = "sistema_normalization"
	PassAnomaly   = "anomalies"
)

// DefaultGeneCeiling is the plausible daily generation ceiling in GWh
const DefaultGeneCeiling = 10000.0

// Config holds corrector configuration
type Config struct {
	GeneCeiling float64
}

// PassError is a failed pass; its partial work was rolled back
type PassError struct {
	Pass  string `json:"pass"`
	Error string `json:"error"`
}

// Stats reports one run. In dry-run the counts are what a real run would do.
type Stats struct {
	RunID     string        `json:"run_id"`
	DryRun    bool          `json:"dry_run"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	FutureDeleted       int64 `json:"fechas_futuras_eliminadas"`
	DuplicateGroups     int64 `json:"grupos_duplicados"`
	DuplicatesDeleted   int64 `json:"duplicados_eliminados"`
	ResourcesNormalized int64 `json:"recursos_normalizados"`
	NormalizationMerged int64 `json:"recursos_fusionados"`
	NegativeDeleted     int64 `json:"valores_negativos_eliminados"`
	CeilingDeleted      int64 `json:"valores_excesivos_eliminados"`

	Errors []PassError `json:"errors,omitempty"`
}

// AnomaliesDeleted is the anomaly pass total
func (s *Stats) AnomaliesDeleted() int64 {
	return s.NegativeDeleted + s.CeilingDeleted
}

// Changes is the number of rows deleted or rewritten
func (s *Stats) Changes() int64 {
	return s.FutureDeleted + s.DuplicatesDeleted + s.ResourcesNormalized +
		s.NormalizationMerged + s.AnomaliesDeleted()
}

// Failed reports whether any pass failed
func (s *Stats) Failed() bool {
	return len(s.Errors) > 0
}

// Corrector runs the correction passes
// ⭐ SSOT: only the corrector deletes or rewrites metric rows
type Corrector struct {
	store   contracts.MetricStore
	metrics *telemetry.Metrics
	logger  *logger.Logger
	cfg     Config
	now     func() time.Time
}

// New creates a Corrector. metrics may be nil.
func New(store contracts.MetricStore, cfg Config, metrics *telemetry.Metrics, log *logger.Logger) *Corrector {
	if cfg.GeneCeiling <= 0 {
		cfg.GeneCeiling = DefaultGeneCeiling
	}
	return &Corrector{
		store:   store,
		metrics: metrics,
		logger:  log.Module("autocorrect"),
		cfg:     cfg,
		now:     time.Now,
	}
}

// run carries the ids earlier passes removed, so later passes detect the
// same rows whether or not the removal was applied
type run struct {
	dryRun  bool
	removed map[int64]bool
	stats   *Stats
	log     *logger.Logger
}

func (r *run) alive(id int64) bool {
	return !r.removed[id]
}

type pass struct {
	name string
	fn   func(ctx context.Context, tx contracts.MetricTx, r *run) ([]int64, error)
}

// Run executes the four passes in order, each in its own transaction. A
// failed pass is reported in Stats and the following passes still run.
// The returned error joins the pass failures.
func (c *Corrector) Run(ctx context.Context, dryRun bool) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.NewString(),
		DryRun:    dryRun,
		StartedAt: c.now(),
	}
	r := &run{
		dryRun:  dryRun,
		removed: make(map[int64]bool),
		stats:   stats,
		log: c.logger.WithFields(map[string]interface{}{
			"run_id":  stats.RunID,
			"dry_run": dryRun,
		}),
	}

	r.log.Info("Starting auto-correction")

	passes := []pass{
		{PassFuture, c.purgeFuture},
		{PassDedup, c.collapseDuplicates},
		{PassNormalize, c.normalizeSistema},
		{PassAnomaly, c.purgeAnomalies},
	}

	var errs []error
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			stats.Errors = append(stats.Errors, PassError{Pass: p.name, Error: err.Error()})
			continue
		}

		// per-pass counters are written into a scratch copy and published
		// only when the transaction commits
		scratch := *stats
		r.stats = &scratch

		var removed []int64
		err := c.store.WithTx(ctx, func(tx contracts.MetricTx) error {
			ids, err := p.fn(ctx, tx, r)
			removed = ids
			return err
		})
		r.stats = stats

		if err != nil {
			err = fmt.Errorf("%s: %w", p.name, err)
			errs = append(errs, err)
			stats.Errors = append(stats.Errors, PassError{Pass: p.name, Error: err.Error()})
			r.log.WithError(err).WithField("pass", p.name).Error("Correction pass failed, rolled back")
			continue
		}

		scratch.Errors = stats.Errors
		*stats = scratch
		for _, id := range removed {
			r.removed[id] = true
		}
	}

	stats.Duration = c.now().Sub(stats.StartedAt)
	c.record(stats)

	r.log.WithFields(map[string]interface{}{
		"fechas_futuras_eliminadas": stats.FutureDeleted,
		"duplicados_eliminados":     stats.DuplicatesDeleted,
		"recursos_normalizados":     stats.ResourcesNormalized,
		"recursos_fusionados":       stats.NormalizationMerged,
		"valores_anomalos":          stats.AnomaliesDeleted(),
		"errors":                    len(stats.Errors),
	}).Info("Auto-correction completed")

	return stats, errors.Join(errs...)
}

// purgeFuture deletes rows dated after tomorrow. It runs first so a bogus
// future row can never be the survivor of a duplicate group.
func (c *Corrector) purgeFuture(ctx context.Context, tx contracts.MetricTx, r *run) ([]int64, error) {
	cutoff := contracts.Day(c.now()).AddDate(0, 0, 1)

	rows, err := tx.Find(ctx, contracts.Selector{FechaAfter: &cutoff})
	if err != nil {
		return nil, err
	}
	ids := r.aliveIDs(rows)

	n, err := r.delete(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	r.stats.FutureDeleted = n

	if n > 0 {
		r.log.WithFields(map[string]interface{}{
			"count":  n,
			"cutoff": cutoff.Format(contracts.DateLayout),
		}).Warn("Future-dated rows purged")
	}
	return ids, nil
}

// collapseDuplicates keeps the highest id of every logical key.
// The highest id is the latest insert, not necessarily the freshest
// fecha_actualizacion.
func (c *Corrector) collapseDuplicates(ctx context.Context, tx contracts.MetricTx, r *run) ([]int64, error) {
	groups, err := tx.DuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}

	var (
		losers []int64
		count  int64
	)
	for _, g := range groups {
		g.IDs = r.filter(g.IDs)
		if len(g.IDs) < 2 {
			continue
		}
		count++
		losers = append(losers, g.Losers()...)
	}

	n, err := r.delete(ctx, tx, losers)
	if err != nil {
		return nil, err
	}
	r.stats.DuplicateGroups = count
	r.stats.DuplicatesDeleted = n

	if n > 0 {
		r.log.WithFields(map[string]interface{}{
			"groups": count,
			"rows":   n,
		}).Info("Duplicate rows collapsed")
	}
	return losers, nil
}

// normalizeSistema rewrites "sistema" spellings to the sentinel. When the
// rewrite would collide with a row already holding the target key, the
// highest id survives and the others are deleted, so the pass never
// creates duplicates.
func (c *Corrector) normalizeSistema(ctx context.Context, tx contracts.MetricTx, r *run) ([]int64, error) {
	found, err := tx.Find(ctx, contracts.Selector{RecursoFold: "sistema"})
	if err != nil {
		return nil, err
	}

	var variants []contracts.Metric
	for _, m := range found {
		if contracts.IsSistemaVariant(m.Recurso) && r.alive(m.ID) {
			variants = append(variants, m)
		}
	}
	if len(variants) == 0 {
		return nil, nil
	}

	// group variants and existing sentinel rows by their target key
	groups := make(map[contracts.Key][]int64)
	isVariant := make(map[int64]bool, len(variants))
	for _, m := range variants {
		isVariant[m.ID] = true
		k := m.Key()
		k.Recurso = contracts.SistemaSentinel
		groups[k] = append(groups[k], m.ID)
	}

	existing, err := c.sentinelRows(ctx, tx, variants)
	if err != nil {
		return nil, err
	}
	for _, m := range existing {
		if !r.alive(m.ID) {
			continue
		}
		if ids, ok := groups[m.Key()]; ok {
			groups[m.Key()] = append(ids, m.ID)
		}
	}

	var rename, merged []int64
	for _, ids := range groups {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		keep := ids[len(ids)-1]
		if isVariant[keep] {
			rename = append(rename, keep)
		}
		merged = append(merged, ids[:len(ids)-1]...)
	}
	sort.Slice(rename, func(i, j int) bool { return rename[i] < rename[j] })

	deleted, err := r.delete(ctx, tx, merged)
	if err != nil {
		return nil, err
	}

	renamed := int64(len(rename))
	if !r.dryRun && len(rename) > 0 {
		renamed, err = tx.SetRecurso(ctx, rename, contracts.SistemaSentinel)
		if err != nil {
			return nil, err
		}
	}

	r.stats.ResourcesNormalized = renamed
	r.stats.NormalizationMerged = deleted

	r.log.WithFields(map[string]interface{}{
		"renamed": renamed,
		"merged":  deleted,
	}).Info("System resource names normalized")
	return merged, nil
}

// sentinelRows loads the sentinel rows that could collide with variants
func (c *Corrector) sentinelRows(ctx context.Context, tx contracts.MetricTx, variants []contracts.Metric) ([]contracts.Metric, error) {
	type span struct{ from, to time.Time }
	spans := make(map[string]*span)
	for _, m := range variants {
		s, ok := spans[m.Metrica]
		if !ok {
			spans[m.Metrica] = &span{from: m.Fecha, to: m.Fecha}
			continue
		}
		if m.Fecha.Before(s.from) {
			s.from = m.Fecha
		}
		if m.Fecha.After(s.to) {
			s.to = m.Fecha
		}
	}

	var out []contracts.Metric
	for metrica, s := range spans {
		rows, err := tx.Find(ctx, contracts.Selector{
			Metrica:   metrica,
			Recurso:   contracts.SistemaSentinel,
			FechaFrom: &s.from,
			FechaTo:   &s.to,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// purgeAnomalies deletes negative values and generation above the ceiling
func (c *Corrector) purgeAnomalies(ctx context.Context, tx contracts.MetricTx, r *run) ([]int64, error) {
	zero := 0.0
	negative, err := tx.Find(ctx, contracts.Selector{ValueBelow: &zero})
	if err != nil {
		return nil, err
	}

	ceiling := c.cfg.GeneCeiling
	excessive, err := tx.Find(ctx, contracts.Selector{Metrica: "Gene", ValueAbove: &ceiling})
	if err != nil {
		return nil, err
	}

	negIDs := r.aliveIDs(negative)
	excIDs := r.aliveIDs(excessive)
	ids := append(append([]int64{}, negIDs...), excIDs...)

	if _, err := r.delete(ctx, tx, ids); err != nil {
		return nil, err
	}
	r.stats.NegativeDeleted = int64(len(negIDs))
	r.stats.CeilingDeleted = int64(len(excIDs))

	if len(ids) > 0 {
		r.log.WithFields(map[string]interface{}{
			"negative": len(negIDs),
			"ceiling":  len(excIDs),
		}).Warn("Anomalous values purged")
	}
	return ids, nil
}

func (r *run) aliveIDs(rows []contracts.Metric) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, m := range rows {
		if r.alive(m.ID) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (r *run) filter(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if r.alive(id) {
			out = append(out, id)
		}
	}
	return out
}

// delete removes ids unless dry-run, returning the affected count
func (r *run) delete(ctx context.Context, tx contracts.MetricTx, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if r.dryRun {
		return int64(len(ids)), nil
	}
	return tx.DeleteIDs(ctx, ids)
}

func (c *Corrector) record(s *Stats) {
	c.metrics.CorrectionPass(PassFuture, s.DryRun, s.FutureDeleted)
	c.metrics.CorrectionPass(PassDedup, s.DryRun, s.DuplicatesDeleted)
	c.metrics.CorrectionPass(PassNormalize, s.DryRun, s.ResourcesNormalized+s.NormalizationMerged)
	c.metrics.CorrectionPass(PassAnomaly, s.DryRun, s.AnomaliesDeleted())

	status := "success"
	if s.Failed() {
		status = "failed"
	}
	c.metrics.CorrectionRun(status)
}
