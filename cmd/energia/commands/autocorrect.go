package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/data/autocorrect"
	"github.com/wonny/energia/backend/pkg/config"
)

// autocorrectCmd represents the autocorrect command
var autocorrectCmd = &cobra.Command{
	Use:   "autocorrect",
	Short: "Restore metric store invariants",
	Long: `Runs the four correction passes in order, each in its own transaction:

  1. delete rows dated after tomorrow
  2. collapse duplicates, keeping the highest id
  3. rename 'sistema' spellings to _SISTEMA_
  4. delete negative values and Gene values above the ceiling

--dry-run reports the same counts without changing anything.
Exits non-zero only when a pass fails internally; finding nothing to
correct is success.

Example:
  go run ./cmd/energia autocorrect --dry-run
  go run ./cmd/energia autocorrect --database-url postgres://.../energia_backup`,
	RunE: runAutocorrectCmd,
}

var (
	autocorrectDryRun bool
	autocorrectDBURL  string
)

func init() {
	rootCmd.AddCommand(autocorrectCmd)

	autocorrectCmd.Flags().BoolVar(&autocorrectDryRun, "dry-run", false, "report without modifying")
	autocorrectCmd.Flags().StringVar(&autocorrectDBURL, "database-url", "", "store to correct (default DATABASE_URL)")
}

func runAutocorrectCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, config.WithDatabaseURL(autocorrectDBURL))
	if err != nil {
		return err
	}
	defer a.Close()

	return runAutocorrect(ctx, a.corrector, autocorrectDryRun, cmd.OutOrStdout())
}

// correctionRunner is satisfied by *autocorrect.Corrector
type correctionRunner interface {
	Run(ctx context.Context, dryRun bool) (*autocorrect.Stats, error)
}

// errPassFailed reports that at least one correction pass failed
var errPassFailed = errors.New("auto-correction failed")

// runAutocorrect prints the run statistics and fails only on internal errors
func runAutocorrect(ctx context.Context, corrector correctionRunner, dryRun bool, out io.Writer) error {
	mode := "apply"
	if dryRun {
		mode = "dry-run"
	}
	PrintHeader(out, "Metric Auto-Correction", [2]string{"Mode", mode})

	stats, err := corrector.Run(ctx, dryRun)
	if stats != nil {
		printCorrectionStats(out, stats)
	}
	if err != nil {
		PrintError(out, err.Error())
		return fmt.Errorf("%w: %v", errPassFailed, err)
	}

	switch {
	case stats.Changes() == 0:
		PrintSuccess(out, "Store already consistent")
	case dryRun:
		PrintInfo(out, fmt.Sprintf("%d rows would change", stats.Changes()))
	default:
		PrintSuccess(out, fmt.Sprintf("%d rows corrected", stats.Changes()))
	}
	return nil
}

func printCorrectionStats(w io.Writer, s *autocorrect.Stats) {
	rows := [][2]string{
		{"fechas_futuras_eliminadas", strconv.FormatInt(s.FutureDeleted, 10)},
		{"duplicados_eliminados", strconv.FormatInt(s.DuplicatesDeleted, 10)},
		{"recursos_normalizados", strconv.FormatInt(s.ResourcesNormalized, 10)},
		{"recursos_fusionados", strconv.FormatInt(s.NormalizationMerged, 10)},
		{"valores_anomalos_eliminados", strconv.FormatInt(s.AnomaliesDeleted(), 10)},
	}
	for _, r := range rows {
		PrintKeyValue(w, r[0], r[1], 28)
	}
	for _, e := range s.Errors {
		PrintWarning(w, fmt.Sprintf("pass %s: %s", e.Pass, e.Error))
	}
}
