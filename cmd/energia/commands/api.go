package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/api"
	"github.com/wonny/energia/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server, with the scheduler running in the same
process unless --no-scheduler is set.

Endpoints:
  GET  /health                          - health check
  GET  /metrics                         - Prometheus metrics
  GET  /api/metrics                     - query stored rows
  GET  /api/metrics/latest              - newest stored date per metric
  GET  /api/metrics/catalog             - configured metric catalog
  GET  /api/metrics/count               - stored row count
  POST /api/ingest                      - run one ingestion
  POST /api/autocorrect?dry_run=true    - run the correction passes
  GET  /api/scheduler/jobs              - job statistics
  POST /api/scheduler/jobs/{name}/run   - trigger a job

Example:
  go run ./cmd/energia api
  go run ./cmd/energia api --port 8080 --no-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	apiNoScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
	apiCmd.Flags().BoolVar(&apiNoScheduler, "no-scheduler", false, "do not run scheduled jobs in this process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	h := api.Handlers{
		Metrics:  handlers.NewMetricsHandler(a.store, a.catalog, a.sharedCache, a.log),
		Pipeline: handlers.NewPipelineHandler(a.collector, a.corrector, a.log),
	}

	if !apiNoScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		h.Scheduler = handlers.NewSchedulerHandler(sched)
	}

	metrics := a.metrics
	if !a.cfg.MetricsEnabled {
		metrics = nil
	}
	server := api.New(a.cfg, a.log, api.NewRouter(h, a.cfg.CORSOrigins, metrics, a.log))

	fmt.Fprintf(cmd.OutOrStdout(), "\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
