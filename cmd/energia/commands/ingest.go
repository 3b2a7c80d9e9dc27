package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/data/collector"
	"github.com/wonny/energia/backend/internal/metricsconfig"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch XM metrics into the store",
	Long: `Runs one ingestion.

Modes:
  incremental - resume each metric from its latest stored date (default)
  full        - reload history_days of every metric
  range       - explicit --from/--to window

Failed metric/resource pairs are reported and do not stop the run.
Only a store failure or an unavailable XM source fails the command.

Example:
  go run ./cmd/energia ingest
  go run ./cmd/energia ingest --mode full --metric Gene/Sistema
  go run ./cmd/energia ingest --mode range --from 2026-01-01 --to 2026-01-31 --metric Gene/Recurso --resource TBST`,
	RunE: runIngest,
}

var (
	ingestMode      string
	ingestFrom      string
	ingestTo        string
	ingestMetrics   []string
	ingestResources []string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestMode, "mode", string(collector.ModeIncremental), "incremental|full|range")
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "range start (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "range end (YYYY-MM-DD)")
	ingestCmd.Flags().StringSliceVar(&ingestMetrics, "metric", nil, "metric or metric/entity to ingest (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestResources, "resource", nil, "resource codes overriding the catalog scope")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := ingestOptions(a.catalog, ingestMode, ingestFrom, ingestTo, ingestMetrics, ingestResources)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	PrintHeader(out, "XM Ingestion", [2]string{"Mode", string(opts.Mode)})

	result, err := a.collector.Run(ctx, opts)
	if result != nil {
		printRunResult(out, result)
	}
	if err != nil {
		PrintError(out, err.Error())
		return err
	}
	return nil
}

// ingestOptions turns flags into collector options
func ingestOptions(cat *metricsconfig.Catalog, mode, from, to string, metrics, resources []string) (collector.Options, error) {
	m, err := collector.ParseMode(mode)
	if err != nil {
		return collector.Options{}, err
	}
	opts := collector.Options{Mode: m, Resources: resources}

	if m == collector.ModeRange {
		if opts.From, err = time.Parse(contracts.DateLayout, from); err != nil {
			return opts, fmt.Errorf("--from: %w", err)
		}
		if opts.To, err = time.Parse(contracts.DateLayout, to); err != nil {
			return opts, fmt.Errorf("--to: %w", err)
		}
	} else if from != "" || to != "" {
		return opts, fmt.Errorf("--from/--to need --mode range")
	}

	for _, id := range metrics {
		metric, entity, _ := strings.Cut(id, "/")
		specs := cat.Select(metric, entity)
		if len(specs) == 0 {
			return opts, fmt.Errorf("metric %q is not in the catalog", id)
		}
		opts.Specs = append(opts.Specs, specs...)
	}
	return opts, nil
}

func printRunResult(w io.Writer, r *collector.RunResult) {
	PrintKeyValue(w, "Run ID", r.RunID, 10)
	PrintKeyValue(w, "Status", string(r.Status), 10)
	PrintKeyValue(w, "Pairs", fmt.Sprintf("%d attempted, %d ok, %d failed, %d empty", r.Attempted, r.Succeeded, r.Failed, r.Empty), 10)
	PrintKeyValue(w, "Rows", strconv.FormatInt(r.RowsInserted, 10), 10)
	PrintKeyValue(w, "Duration", r.Duration.Round(time.Millisecond).String(), 10)

	failures := r.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	widths := []int{18, 10, 14, 23, 40}
	PrintTableHeader(w, []string{"METRICA", "ENTIDAD", "RECURSO", "WINDOW", "ERROR"}, widths)
	for _, p := range failures {
		PrintTableRow(w, []string{p.Metrica, p.Entidad, p.Recurso, p.Window, p.Error}, widths)
	}
}
