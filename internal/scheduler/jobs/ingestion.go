package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/energia/backend/internal/data/collector"
	"github.com/wonny/energia/backend/pkg/logger"
)

// Ingester runs an incremental ingestion (*collector.Collector)
type Ingester interface {
	RunIncremental(ctx context.Context) (*collector.RunResult, error)
}

// IngestionJob refreshes the incremental metrics on a short interval
// ⭐ SSOT: the recurring ingestion schedule lives in this job only
type IngestionJob struct {
	ingester Ingester
	schedule string
	logger   *logger.Logger
}

// NewIngestionJob creates a new ingestion job
func NewIngestionJob(ingester Ingester, schedule string, log *logger.Logger) *IngestionJob {
	return &IngestionJob{
		ingester: ingester,
		schedule: schedule,
		logger:   log.Module("job.ingestion"),
	}
}

// Name returns the job name
func (j *IngestionJob) Name() string {
	return "ingestion"
}

// Schedule returns the cron schedule (default every 6 hours)
func (j *IngestionJob) Schedule() string {
	return j.schedule
}

// Run executes one incremental ingestion. Partial success is a successful
// run; only a fatal error (store, source unavailable) fails the job.
func (j *IngestionJob) Run(ctx context.Context) error {
	res, err := j.ingester.RunIncremental(ctx)
	if err != nil {
		return fmt.Errorf("incremental ingestion: %w", err)
	}

	if res.Status != collector.StatusSuccess {
		j.logger.WithFields(map[string]interface{}{
			"run_id": res.RunID,
			"status": res.Status,
			"failed": res.Failed,
		}).Warn("Ingestion finished with failed pairs")
	}
	return nil
}
