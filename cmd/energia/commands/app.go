package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/energia/backend/internal/cache"
	"github.com/wonny/energia/backend/internal/catalog"
	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/data"
	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/internal/data/collector"
	"github.com/wonny/energia/backend/internal/external/xm"
	"github.com/wonny/energia/backend/internal/maintenance"
	"github.com/wonny/energia/backend/internal/metricsconfig"
	"github.com/wonny/energia/backend/internal/prediction"
	"github.com/wonny/energia/backend/internal/scheduler"
	"github.com/wonny/energia/backend/internal/scheduler/jobs"
	"github.com/wonny/energia/backend/internal/telemetry"
	"github.com/wonny/energia/backend/pkg/config"
	"github.com/wonny/energia/backend/pkg/database"
	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/redis"
)

const (
	rowCacheTTL       = 10 * time.Minute
	providerRetry     = 5 * time.Minute
	validationDays    = 30
	schedulerRetryGap = time.Minute
)

// app holds the wired components shared by the commands
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	rdb     *redis.Client
	metrics *telemetry.Metrics
	catalog *metricsconfig.Catalog

	store       contracts.MetricStore
	rowCache    *cache.TTLCache[[]xm.RawRow]
	listCache   *cache.TTLCache[[]contracts.Resource]
	sharedCache *redis.Cache
	provider    *xm.Provider
	resources   *catalog.Service
	collector   *collector.Collector
	corrector   *autocorrect.Corrector
	validator   *prediction.Validator
	logCleaner  *maintenance.LogCleaner
}

// loadConfig applies the global flags on top of the environment
func loadConfig(opts ...config.Option) (*config.Config, error) {
	opts = append(opts, config.WithEnv(env))
	if verbose {
		opts = append(opts, config.WithLogLevel("debug"))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if catalogFile != "" {
		cfg.Ingest.CatalogPath = catalogFile
	}
	return cfg, nil
}

// newApp wires every component. Nothing talks to XM until a command
// asks the provider for the source.
func newApp(ctx context.Context, opts ...config.Option) (*app, error) {
	// 1. Load config
	cfg, err := loadConfig(opts...)
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Metric catalog
	cat, err := metricsconfig.Load(cfg.Ingest.CatalogPath)
	if err != nil {
		return nil, err
	}

	// 4. Connect to database
	db, err := database.Open(ctx, cfg.Database.URL, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Redis (optional)
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without shared cache")
		rdb = redis.Disabled()
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		rdb:         rdb,
		metrics:     telemetry.New(),
		catalog:     cat,
		store:       data.NewMetricRepository(db.Pool),
		rowCache:    cache.New[[]xm.RawRow](rowCacheTTL),
		listCache:   cache.New[[]contracts.Resource](cfg.XM.ListingTTL),
		sharedCache: redis.NewCache(rdb, "energia"),
	}

	// 6. XM source, built lazily
	client := xm.NewClient(xm.NewHTTPClient(cfg.XM, rdb, log), cfg.XM.BaseURL, log)
	a.provider = xm.NewProvider(xm.ClientBuilder(cfg.XM, client, a.rowCache, log), providerRetry)

	// 7. Resource catalog
	listings := func(ctx context.Context) (catalog.Source, error) {
		if !cfg.XM.Enabled {
			return nil, xm.ErrUnavailable
		}
		return client, nil
	}
	a.resources = catalog.NewService(listings, data.NewCatalogRepository(db.Pool), a.listCache, a.sharedCache, log)

	// 8. Pipeline
	a.collector = collector.NewCollector(a.provider, a.store, cat, a.resources, a.metrics, collector.ConfigFrom(cfg.Ingest), log)
	a.corrector = autocorrect.New(a.store, autocorrect.Config{GeneCeiling: cfg.Maintenance.GeneCeiling}, a.metrics, log)
	a.validator = prediction.NewValidator(data.NewPredictionRepository(db.Pool), cfg.Maintenance.PredictionMAPEMax, log)
	a.logCleaner = maintenance.NewLogCleaner(cfg.Maintenance.LogDir, cfg.Maintenance.LogRetentionDays, log)

	return a, nil
}

// newScheduler registers the recurring jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Config{
		Workers:    a.cfg.Schedules.Workers,
		RetryDelay: schedulerRetryGap,
	}, a.metrics, a.log)

	for _, job := range []scheduler.Job{
		jobs.NewIngestionJob(a.collector, a.cfg.Schedules.Ingest, a.log),
		jobs.NewMaintenanceJob(a.corrector, a.logCleaner, a.cfg.Schedules.Maintenance, false, a.log),
		jobs.NewCatalogRefreshJob(a.resources, a.cfg.Schedules.Catalog, a.log),
		jobs.NewPredictionValidationJob(a.validator, validationDays, a.log),
		jobs.NewCacheCleanupJob(map[string]jobs.StaleCleaner{
			"xm_rows":  a.rowCache,
			"listings": a.listCache,
		}, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("register job %s: %w", job.Name(), err)
		}
	}
	return sched, nil
}

// Close releases the database and redis connections
func (a *app) Close() {
	if err := a.rdb.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
