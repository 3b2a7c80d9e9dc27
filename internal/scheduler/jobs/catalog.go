package jobs

import (
	"context"

	"github.com/wonny/energia/backend/internal/catalog"
	"github.com/wonny/energia/backend/pkg/logger"
)

// CatalogRefresher reloads the XM resource listings (*catalog.Service)
type CatalogRefresher interface {
	Refresh(ctx context.Context, listings ...string) (*catalog.RefreshResult, error)
}

// CatalogRefreshJob refreshes the resource catalog weekly
type CatalogRefreshJob struct {
	refresher CatalogRefresher
	schedule  string
	logger    *logger.Logger
}

// NewCatalogRefreshJob creates a new catalog refresh job
func NewCatalogRefreshJob(refresher CatalogRefresher, schedule string, log *logger.Logger) *CatalogRefreshJob {
	return &CatalogRefreshJob{
		refresher: refresher,
		schedule:  schedule,
		logger:    log.Module("job.catalog"),
	}
}

// Name returns the job name
func (j *CatalogRefreshJob) Name() string {
	return "catalog_refresh"
}

// Schedule returns the cron schedule (default Sunday 02:00)
func (j *CatalogRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	res, err := j.refresher.Refresh(ctx)
	if res != nil && len(res.Upserted) > 0 {
		j.logger.WithField("upserted", res.Upserted).Info("Catalog refreshed")
	}
	return err
}
