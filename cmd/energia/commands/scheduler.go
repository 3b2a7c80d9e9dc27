package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the job scheduler",
	Long: `Starts the scheduler daemon or manages its jobs.

Subcommands:
  start   - start the scheduler
  list    - list registered jobs
  run     - run one job now and wait for it
  status  - show job statistics

Example:
  go run ./cmd/energia scheduler start
  go run ./cmd/energia scheduler list
  go run ./cmd/energia scheduler run maintenance`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and schedules every registered job.

Registered jobs:
- ingestion: every 6 hours (INGEST_SCHEDULE)
- maintenance: daily 03:30, auto-correction then log cleanup (MAINTENANCE_SCHEDULE)
- catalog_refresh: Sundays 02:00 (CATALOG_SCHEDULE)
- prediction_validation: daily 06:00
- cache_cleanup: every 15 minutes

A failing run never removes a job from the schedule.
Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job statistics",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	PrintHeader(out, "energia Scheduler")

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	if a.cfg.MetricsEnabled {
		go serveMetrics(a)
	}

	PrintSuccess(out, "Scheduler started")
	printJobs(out, sched)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Fprintln(out, "\nShutting down scheduler...")
	sched.Stop()
	fmt.Fprintln(out, "Scheduler stopped")

	return nil
}

// serveMetrics exposes /metrics on METRICS_PORT for the daemon
func serveMetrics(a *app) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	addr := ":" + a.cfg.MetricsPort
	a.log.WithField("addr", addr).Info("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.log.WithError(err).Error("Metrics server stopped")
	}
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobs(cmd.OutOrStdout(), sched)
	return nil
}

func printJobs(w io.Writer, sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	widths := []int{24, 20}
	PrintTableHeader(w, []string{"JOB", "SCHEDULE"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow(w, []string{name, stats[name].Schedule}, widths)
	}
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer sched.Stop()

	fmt.Fprintf(out, "Running job: %s\n", jobName)
	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		PrintError(out, err.Error())
		return err
	}

	PrintSuccess(out, fmt.Sprintf("Job %s completed in %s (%d attempt(s))", jobName, result.Duration, result.Attempts))
	return nil
}

// showStatus prints statistics of a fresh scheduler. History lives in the
// daemon process; use GET /api/scheduler/jobs for the running instance.
func showStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobStats(cmd.OutOrStdout(), sched.GetJobStats(), sched.GetAllJobs())
	return nil
}

func printJobStats(w io.Writer, stats map[string]scheduler.JobStats, names []string) {
	fmt.Fprintln(w, "Job Statistics:")
	fmt.Fprintln(w)

	for _, name := range names {
		stat := stats[name]
		fmt.Fprintf(w, "📊 %s\n", name)
		PrintKeyValue(w, "Schedule", stat.Schedule, 12)
		PrintKeyValue(w, "Total Runs", strconv.Itoa(stat.TotalRuns), 12)
		PrintKeyValue(w, "Success", fmt.Sprintf("%d (%.1f%%)", stat.SuccessCount, stat.SuccessRate*100), 12)
		PrintKeyValue(w, "Failures", strconv.Itoa(stat.FailureCount), 12)
		PrintKeyValue(w, "Skipped", strconv.Itoa(stat.Skipped), 12)
		PrintKeyValue(w, "Last Run", formatTime(stat.LastRun), 12)
		PrintKeyValue(w, "Next Run", formatTime(stat.NextRun), 12)
		if stat.LastError != "" {
			PrintKeyValue(w, "Last Error", stat.LastError, 12)
		}
		fmt.Fprintln(w)
	}
}
