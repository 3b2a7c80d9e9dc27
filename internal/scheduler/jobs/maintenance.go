package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/internal/maintenance"
	"github.com/wonny/energia/backend/pkg/logger"
)

// Corrector runs the correction passes (*autocorrect.Corrector)
type Corrector interface {
	Run(ctx context.Context, dryRun bool) (*autocorrect.Stats, error)
}

// LogCleaner removes expired log files (*maintenance.LogCleaner)
type LogCleaner interface {
	Clean(dryRun bool) (*maintenance.LogCleanupResult, error)
}

// MaintenanceJob runs auto-correction then log cleanup once a day
type MaintenanceJob struct {
	corrector Corrector
	cleaner   LogCleaner
	schedule  string
	dryRun    bool
	logger    *logger.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(corrector Corrector, cleaner LogCleaner, schedule string, dryRun bool, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		corrector: corrector,
		cleaner:   cleaner,
		schedule:  schedule,
		dryRun:    dryRun,
		logger:    log.Module("job.maintenance"),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Schedule returns the cron schedule (default daily 03:30)
func (j *MaintenanceJob) Schedule() string {
	return j.schedule
}

// Run executes both tasks; a failing correction does not skip cleanup
func (j *MaintenanceJob) Run(ctx context.Context) error {
	var errs []error

	stats, err := j.corrector.Run(ctx, j.dryRun)
	if err != nil {
		errs = append(errs, fmt.Errorf("auto-correction: %w", err))
	} else if stats.Changes() > 0 {
		j.logger.WithFields(map[string]interface{}{
			"run_id":  stats.RunID,
			"changes": stats.Changes(),
		}).Info("Store invariants restored")
	}

	if j.cleaner != nil {
		if _, err := j.cleaner.Clean(j.dryRun); err != nil {
			errs = append(errs, fmt.Errorf("log cleanup: %w", err))
		}
	}

	return errors.Join(errs...)
}

// StaleCleaner drops expired entries of an in-process cache
type StaleCleaner interface {
	CleanStale() int
}

// CacheCleanupJob sweeps expired entries from in-process TTL caches
type CacheCleanupJob struct {
	caches map[string]StaleCleaner
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(caches map[string]StaleCleaner, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		caches: caches,
		logger: log.Module("job.cache_cleanup"),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	for name, c := range j.caches {
		if removed := c.CleanStale(); removed > 0 {
			j.logger.WithFields(map[string]interface{}{
				"cache":   name,
				"removed": removed,
			}).Debug("Cache cleanup completed")
		}
	}
	return nil
}
