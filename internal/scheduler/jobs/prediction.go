package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/energia/backend/internal/prediction"
	"github.com/wonny/energia/backend/pkg/logger"
)

// PredictionValidator scores stored forecasts (*prediction.Validator)
type PredictionValidator interface {
	Validate(ctx context.Context, days int) (*prediction.Report, error)
}

// PredictionValidationJob checks forecast accuracy every morning
type PredictionValidationJob struct {
	validator PredictionValidator
	days      int
	logger    *logger.Logger
}

// NewPredictionValidationJob creates a new prediction validation job
func NewPredictionValidationJob(validator PredictionValidator, days int, log *logger.Logger) *PredictionValidationJob {
	return &PredictionValidationJob{
		validator: validator,
		days:      days,
		logger:    log.Module("job.prediction"),
	}
}

// Name returns the job name
func (j *PredictionValidationJob) Name() string {
	return "prediction_validation"
}

// Schedule returns the cron schedule (daily 06:00)
func (j *PredictionValidationJob) Schedule() string {
	return "0 0 6 * * *"
}

// Run executes the validation. Accuracy alerts are logged by the
// validator and do not fail the job.
func (j *PredictionValidationJob) Run(ctx context.Context) error {
	report, err := j.validator.Validate(ctx, j.days)
	if err != nil {
		return fmt.Errorf("validate predictions: %w", err)
	}
	if !report.Passed() {
		j.logger.WithField("alerts", len(report.Alerts)).Warn("Prediction accuracy below threshold")
	}
	return nil
}
