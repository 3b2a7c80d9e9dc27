package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"

	"github.com/wonny/energia/backend/internal/telemetry"
	"github.com/wonny/energia/backend/pkg/logger"
)

// Config holds scheduler settings
type Config struct {
	Workers    int           // concurrent job executions
	MaxRetries int           // extra attempts inside one trigger
	RetryDelay time.Duration // wait between attempts
}

type entry struct {
	job     Job
	id      cron.EntryID
	running atomic.Bool
	history *JobHistory
}

// Scheduler fires cron triggers and dispatches jobs to a worker pool.
// Every job has its own trigger; a failing or slow run never affects the
// next occurrence of any job.
// ⭐ SSOT: recurring work is scheduled here only
type Scheduler struct {
	cron    *cron.Cron
	pool    pond.Pool
	logger  *logger.Logger
	metrics *telemetry.Metrics
	cfg     Config

	mu   sync.RWMutex
	jobs map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler. metrics may be nil.
func New(cfg Config, metrics *telemetry.Metrics, log *logger.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		pool:    pond.NewPool(cfg.Workers),
		logger:  log.Module("scheduler"),
		metrics: metrics,
		cfg:     cfg,
		jobs:    make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	e := &entry{job: job, history: &JobHistory{}}
	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.dispatch(e, "cron")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	e.id = id
	s.jobs[name] = e

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job and its trigger
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(e.id)
	delete(s.jobs, name)
	s.logger.WithField("job", name).Info("Job removed from scheduler")

	return nil
}

// Start starts the cron triggers
func (s *Scheduler) Start() {
	s.logger.WithField("workers", s.cfg.Workers).Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the triggers, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.cancel()
	s.pool.StopAndWait()
	s.logger.Info("Scheduler stopped")
}

// RunJob dispatches a job immediately, outside of its schedule
func (s *Scheduler) RunJob(name string) error {
	e, err := s.entry(name)
	if err != nil {
		return err
	}
	if !s.dispatch(e, "manual") {
		return fmt.Errorf("job %s is already running", name)
	}
	return nil
}

// RunJobSync runs a job in the caller's goroutine and returns its result
func (s *Scheduler) RunJobSync(ctx context.Context, name string) (JobResult, error) {
	e, err := s.entry(name)
	if err != nil {
		return JobResult{}, err
	}
	if !e.running.CompareAndSwap(false, true) {
		return JobResult{}, fmt.Errorf("job %s is already running", name)
	}
	defer e.running.Store(false)

	result := s.execute(ctx, e, "manual")
	if !result.Success {
		return result, fmt.Errorf("job %s failed: %s", name, result.Error)
	}
	return result, nil
}

func (s *Scheduler) entry(name string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return e, nil
}

// dispatch submits one run unless the previous run is still in flight
func (s *Scheduler) dispatch(e *entry, trigger string) bool {
	if !e.running.CompareAndSwap(false, true) {
		s.mu.Lock()
		e.history.Skipped++
		s.mu.Unlock()
		s.logger.WithField("job", e.job.Name()).Warn("Previous run still in flight, trigger skipped")
		return false
	}

	s.pool.Submit(func() {
		defer e.running.Store(false)
		s.execute(s.ctx, e, trigger)
	})
	return true
}

// execute runs a job with retries. Failures and panics are recorded,
// never propagated to the trigger.
func (s *Scheduler) execute(ctx context.Context, e *entry, trigger string) JobResult {
	name := e.job.Name()
	start := time.Now()
	log := s.logger.WithFields(map[string]interface{}{
		"job":     name,
		"trigger": trigger,
	})
	log.Info("Job started")

	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		attempts++
		lastErr = safeRun(ctx, e.job)
		if lastErr == nil || ctx.Err() != nil {
			break
		}

		log.WithError(lastErr).WithField("attempt", attempts).Warn("Job execution failed")

		if attempt < s.cfg.MaxRetries {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.RetryDelay):
			}
		}
	}

	end := time.Now()
	result := JobResult{
		JobName:   name,
		Trigger:   trigger,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	e.history.AddResult(result)
	s.mu.Unlock()
	s.metrics.Job(name, lastErr, result.Duration)

	if result.Success {
		log.WithField("duration", result.Duration.String()).Info("Job completed successfully")
	} else {
		log.WithError(lastErr).WithField("duration", result.Duration.String()).Error("Job failed, next occurrence stays scheduled")
	}
	return result
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// GetJobHistory returns a copy of the history of one job
func (s *Scheduler) GetJobHistory(name string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return &JobHistory{Results: e.history.Latest(historySize), Skipped: e.history.Skipped}, nil
}

// GetAllJobs returns the registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJobStats returns statistics for all jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, e := range s.jobs {
		h := e.history
		st := JobStats{
			JobName:      name,
			Schedule:     e.job.Schedule(),
			Running:      e.running.Load(),
			TotalRuns:    len(h.Results),
			FailureCount: h.Failures(),
			Skipped:      h.Skipped,
			SuccessRate:  h.SuccessRate(),
		}
		st.SuccessCount = st.TotalRuns - st.FailureCount

		for i := range h.Results {
			r := h.Results[i]
			st.LastRun = &r.StartTime
			if r.Success {
				st.LastSuccess = &r.StartTime
			} else {
				st.LastFailure = &r.StartTime
				st.LastError = r.Error
			}
		}

		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			st.NextRun = &next
		}
		stats[name] = st
	}

	return stats
}
