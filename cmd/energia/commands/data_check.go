package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/internal/metricsconfig"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "Check metric store freshness and consistency",
	Long: `Reports the state of the metrics table.

Checks:
- total row count
- latest stored date of every catalog metric and its lag
- what a dry-run auto-correction would change

Example:
  go run ./cmd/energia data-check`,
	RunE: runDataCheck,
}

var dataCheckMaxLag int

func init() {
	rootCmd.AddCommand(dataCheckCmd)

	dataCheckCmd.Flags().IntVar(&dataCheckMaxLag, "max-lag", 7, "days before a metric counts as stale")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader(out, "energia Data Check")

	stale, err := checkFreshness(ctx, out, a.store, a.catalog, time.Now(), dataCheckMaxLag)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	if err := runAutocorrect(ctx, a.corrector, true, out); err != nil {
		return err
	}

	if stale > 0 {
		PrintWarning(out, fmt.Sprintf("%d metrics lag more than %d days", stale, dataCheckMaxLag))
	}
	return nil
}

// checkFreshness prints the latest date of every catalog metric and
// returns how many are stale
func checkFreshness(ctx context.Context, w io.Writer, store contracts.MetricStore, cat *metricsconfig.Catalog, now time.Time, maxLag int) (int, error) {
	total, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count metrics: %w", err)
	}
	PrintKeyValue(w, "Rows", strconv.FormatInt(total, 10), 6)
	fmt.Fprintln(w)

	today := contracts.Day(now)
	widths := []int{26, 12, 8, 6}
	PrintTableHeader(w, []string{"METRIC", "LATEST", "LAG", ""}, widths)

	stale := 0
	for _, spec := range cat.All() {
		latest, found, err := store.LatestDate(ctx, spec.Metric, spec.Entity)
		if err != nil {
			return stale, fmt.Errorf("latest date of %s: %w", spec.ID(), err)
		}

		if !found {
			stale++
			PrintTableRow(w, []string{spec.ID(), "-", "-", "❌"}, widths)
			continue
		}

		lag := int(today.Sub(contracts.Day(latest)).Hours() / 24)
		mark := "✅"
		if lag > maxLag {
			stale++
			mark = "⚠️"
		}
		PrintTableRow(w, []string{spec.ID(), latest.Format(contracts.DateLayout), fmt.Sprintf("%dd", lag), mark}, widths)
	}
	return stale, nil
}
