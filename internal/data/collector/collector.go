// Package collector runs ingestion: metric specs × resources × date windows
// fetched from XM, normalized and appended to the metric store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/data/normalizer"
	"github.com/wonny/energia/backend/internal/external/xm"
	"github.com/wonny/energia/backend/internal/metricsconfig"
	"github.com/wonny/energia/backend/internal/telemetry"
	"github.com/wonny/energia/backend/pkg/config"
	"github.com/wonny/energia/backend/pkg/logger"
)

var errNotRun = errors.New("pair not run: ingestion cancelled")

// ResourceLister resolves resource codes of a tipo (HIDRAULICA, SOLAR, ...)
type ResourceLister interface {
	Codes(ctx context.Context, tipo string) ([]string, error)
}

// Config holds collector configuration
type Config struct {
	Workers      int           // concurrent pairs
	LookbackDays int           // incremental start when nothing is stored yet
	OverlapDays  int           // re-fetched days before the latest stored date
	BatchDays    int           // default sub-window length
	BatchPause   time.Duration // pause between sub-windows of one pair
}

// ConfigFrom maps the env configuration
func ConfigFrom(c config.IngestConfig) Config {
	return Config{
		Workers:      c.Workers,
		LookbackDays: c.LookbackDays,
		OverlapDays:  c.OverlapDays,
		BatchDays:    c.BatchDays,
		BatchPause:   c.BatchPause,
	}
}

// Options narrows one run
type Options struct {
	Mode      Mode
	Specs     []metricsconfig.MetricSpec // empty = catalog default for Mode
	Resources []string                   // overrides the resource scope of every non-system spec
	From, To  time.Time                  // ModeRange only
}

// Collector orchestrates ingestion runs
// ⭐ SSOT: only the collector inserts into the metric store
type Collector struct {
	provider *xm.Provider
	store    contracts.MetricStore
	catalog  *metricsconfig.Catalog
	lister   ResourceLister
	metrics  *telemetry.Metrics
	logger   *logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewCollector creates a new Collector. lister and metrics may be nil.
func NewCollector(
	provider *xm.Provider,
	store contracts.MetricStore,
	catalog *metricsconfig.Catalog,
	lister ResourceLister,
	metrics *telemetry.Metrics,
	cfg Config,
	log *logger.Logger,
) *Collector {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Collector{
		provider: provider,
		store:    store,
		catalog:  catalog,
		lister:   lister,
		metrics:  metrics,
		logger:   log.Module("collector"),
		cfg:      cfg,
		now:      time.Now,
	}
}

type task struct {
	spec     metricsconfig.MetricSpec
	resource string
	window   Window
	rng      *metricsconfig.Range
}

// RunIncremental refreshes the catalog's incremental metrics
func (c *Collector) RunIncremental(ctx context.Context) (*RunResult, error) {
	return c.Run(ctx, Options{Mode: ModeIncremental})
}

// Run executes one ingestion run. Fetch failures are isolated per pair and
// reported in the result; the returned error is non-nil only when the
// source is unavailable, the options are invalid or the store failed.
func (c *Collector) Run(ctx context.Context, opts Options) (*RunResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	result := &RunResult{
		RunID:     uuid.NewString(),
		Mode:      opts.Mode,
		StartedAt: c.now(),
	}
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"mode":   opts.Mode,
	})

	if opts.Mode == ModeRange && (opts.From.IsZero() || opts.To.IsZero() || opts.To.Before(opts.From)) {
		return c.abort(result, log, fmt.Errorf("range mode needs from <= to"))
	}

	src, err := c.provider.Get(ctx)
	if err != nil {
		return c.abort(result, log, err)
	}

	tasks, planned, err := c.plan(ctx, c.specs(opts), opts, log)
	if err != nil {
		return c.abort(result, log, err)
	}

	log.WithFields(map[string]interface{}{
		"pairs":   len(tasks),
		"workers": c.cfg.Workers,
	}).Info("Starting ingestion")

	pairs, err := c.execute(ctx, src, tasks, log)
	result.Pairs = append(planned, pairs...)
	result.tally()
	if err != nil {
		return c.abort(result, log, err)
	}

	c.finish(result, log)
	return result, nil
}

// specs picks the catalog default when the caller did not
func (c *Collector) specs(opts Options) []metricsconfig.MetricSpec {
	if len(opts.Specs) > 0 {
		return opts.Specs
	}
	if opts.Mode == ModeIncremental {
		return c.catalog.Incremental()
	}
	return c.catalog.All()
}

// plan resolves windows and resources. A resource-listing failure becomes
// a failed pair; a store failure aborts the run.
func (c *Collector) plan(ctx context.Context, specs []metricsconfig.MetricSpec, opts Options, log *logger.Logger) ([]task, []PairResult, error) {
	var (
		tasks  []task
		failed []PairResult
	)

	for _, spec := range specs {
		window, err := c.window(ctx, spec, opts)
		if err != nil {
			return nil, nil, err
		}

		resources, err := c.resources(ctx, spec, opts)
		if err != nil {
			log.WithError(err).WithField("metrica", spec.ID()).Warn("Resource scope unavailable, skipping metric")
			c.metrics.Pair(spec.Metric, "failed")
			failed = append(failed, PairResult{
				Metrica: spec.Metric,
				Entidad: spec.Entity,
				Window:  window.String(),
				Error:   err.Error(),
				err:     err,
			})
			continue
		}

		var rng *metricsconfig.Range
		if r, ok := c.catalog.RangeFor(spec.Metric, spec.Entity); ok {
			rng = &r
		}

		for _, res := range resources {
			tasks = append(tasks, task{spec: spec, resource: res, window: window, rng: rng})
		}
	}

	return tasks, failed, nil
}

// window computes the date window of a spec for the run mode
func (c *Collector) window(ctx context.Context, spec metricsconfig.MetricSpec, opts Options) (Window, error) {
	today := contracts.Day(c.now())

	switch opts.Mode {
	case ModeRange:
		return Window{From: contracts.Day(opts.From), To: contracts.Day(opts.To)}, nil

	case ModeFull:
		days := spec.HistoryDays
		if days <= 0 {
			days = c.cfg.LookbackDays
		}
		return Window{From: today.AddDate(0, 0, -days), To: today}, nil

	default:
		latest, ok, err := c.store.LatestDate(ctx, spec.Metric, spec.Entity)
		if err != nil {
			return Window{}, asStoreErr(fmt.Sprintf("latest date %s", spec.ID()), err)
		}

		from := today.AddDate(0, 0, -c.cfg.LookbackDays)
		if ok {
			from = contracts.Day(latest).AddDate(0, 0, -c.cfg.OverlapDays)
		}
		if from.After(today) {
			from = today
		}
		return Window{From: from, To: today}, nil
	}
}

// resources returns the resource codes requested one by one. "" means a
// single entity-wide request.
func (c *Collector) resources(ctx context.Context, spec metricsconfig.MetricSpec, opts Options) ([]string, error) {
	if strings.EqualFold(spec.Entity, "Sistema") {
		return []string{contracts.SistemaSentinel}, nil
	}
	if len(opts.Resources) > 0 {
		return opts.Resources, nil
	}
	if len(spec.Resources) > 0 {
		return spec.Resources, nil
	}
	if spec.ResourceType != "" {
		if c.lister == nil {
			return nil, fmt.Errorf("%s: resource_type %s needs a resource catalog", spec.ID(), spec.ResourceType)
		}
		codes, err := c.lister.Codes(ctx, spec.ResourceType)
		if err != nil {
			return nil, fmt.Errorf("list %s resources: %w", spec.ResourceType, err)
		}
		if len(codes) == 0 {
			return nil, fmt.Errorf("no %s resources listed", spec.ResourceType)
		}
		return codes, nil
	}
	return []string{""}, nil
}

// execute fans the tasks out over a worker pool. The first store failure
// cancels the remaining pairs and is returned.
func (c *Collector) execute(ctx context.Context, src xm.Source, tasks []task, log *logger.Logger) ([]PairResult, error) {
	pairs := make([]PairResult, len(tasks))
	if len(tasks) == 0 {
		return pairs, nil
	}

	for i, t := range tasks {
		pairs[i] = PairResult{
			Metrica: t.spec.Metric,
			Entidad: t.spec.Entity,
			Recurso: t.resource,
			Window:  t.window.String(),
			Error:   errNotRun.Error(),
			err:     errNotRun,
		}
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pool := pond.NewPool(c.cfg.Workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(runCtx)
	groupCtx := group.Context()

	for i, t := range tasks {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			pairs[i] = c.runPair(groupCtx, src, t, log)
			if errors.Is(pairs[i].err, contracts.ErrStore) {
				cancel(pairs[i].err)
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		log.WithError(err).Warn("Ingestion group encountered error")
	}

	if cause := context.Cause(runCtx); errors.Is(cause, contracts.ErrStore) {
		return pairs, cause
	}
	if err := ctx.Err(); err != nil {
		return pairs, err
	}
	return pairs, nil
}

// runPair fetches every sub-window of one pair, then writes once. No
// store call happens while a fetch is in flight.
func (c *Collector) runPair(ctx context.Context, src xm.Source, t task, log *logger.Logger) PairResult {
	pr := PairResult{
		Metrica: t.spec.Metric,
		Entidad: t.spec.Entity,
		Recurso: t.resource,
		Window:  t.window.String(),
	}
	plog := log.WithFields(map[string]interface{}{
		"metrica": t.spec.Metric,
		"entidad": t.spec.Entity,
		"recurso": t.resource,
	})

	batchDays := t.spec.BatchDays
	if batchDays <= 0 {
		batchDays = c.cfg.BatchDays
	}

	var (
		rows     []contracts.Metric
		fetchErr error
	)
	for i, w := range t.window.Split(batchDays) {
		if i > 0 {
			if err := pause(ctx, c.cfg.BatchPause); err != nil {
				fetchErr = err
				break
			}
		}

		raw, err := src.Fetch(ctx, xm.Request{
			Metric:   t.spec.Metric,
			Entity:   t.spec.Entity,
			Resource: t.resource,
			From:     w.From,
			To:       w.To,
			Hourly:   t.spec.Conversion.Hourly(),
		})
		if errors.Is(err, xm.ErrEmptyResponse) {
			plog.WithField("window", w.String()).Debug("No data for window")
			continue
		}
		if err != nil {
			plog.WithError(err).WithField("window", w.String()).Warn("Fetch failed")
			fetchErr = fmt.Errorf("fetch %s: %w", w, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		res := normalizer.Normalize(normalizer.Input{
			Spec:     t.spec,
			Resource: t.resource,
			Range:    t.rng,
			Now:      c.now(),
		}, raw)
		for _, s := range res.Skipped {
			plog.WithError(s.Err).WithField("row", s.Index).Debug("Row skipped")
		}
		if len(res.Skipped) > 0 {
			plog.WithFields(map[string]interface{}{
				"skipped":  len(res.Skipped),
				"rejected": res.Rejected,
				"first":    res.Skipped[0].Error(),
			}).Warn("Rows dropped by normalizer")
		}
		pr.Skipped += len(res.Skipped)
		pr.Rejected += res.Rejected
		rows = append(rows, res.Rows...)
	}

	if len(rows) > 0 {
		n, err := c.store.Insert(ctx, rows)
		if err != nil {
			pr.err = asStoreErr("insert "+t.spec.ID(), err)
			pr.Error = pr.err.Error()
			plog.WithError(err).Error("Store insert failed")
			c.metrics.Pair(t.spec.Metric, "failed")
			return pr
		}
		pr.Rows = n
	}

	c.metrics.Rows(t.spec.Metric, pr.Rows, pr.Skipped, pr.Rejected)

	switch {
	case fetchErr != nil:
		pr.err = fetchErr
		pr.Error = fetchErr.Error()
		c.metrics.Pair(t.spec.Metric, "failed")
	case len(rows) == 0:
		pr.Empty = true
		c.metrics.Pair(t.spec.Metric, "empty")
	default:
		c.metrics.Pair(t.spec.Metric, "success")
		plog.WithField("rows", pr.Rows).Debug("Pair ingested")
	}
	return pr
}

func (c *Collector) abort(result *RunResult, log *logger.Logger, err error) (*RunResult, error) {
	result.Status = StatusFailed
	result.Duration = c.now().Sub(result.StartedAt)
	c.metrics.IngestRun(string(result.Status), result.Duration)
	log.WithError(err).Error("Ingestion aborted")
	return result, err
}

func (c *Collector) finish(result *RunResult, log *logger.Logger) {
	result.Duration = c.now().Sub(result.StartedAt)
	c.metrics.IngestRun(string(result.Status), result.Duration)

	log.WithFields(map[string]interface{}{
		"status":    result.Status,
		"attempted": result.Attempted,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"empty":     result.Empty,
		"rows":      result.RowsInserted,
		"duration":  result.Duration.String(),
	}).Info("Ingestion completed")
}

// asStoreErr guarantees err matches contracts.ErrStore
func asStoreErr(op string, err error) error {
	if errors.Is(err, contracts.ErrStore) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, contracts.ErrStore, err)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
