package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/prediction"
)

// validatePredictionsCmd represents the validate-predictions command
var validatePredictionsCmd = &cobra.Command{
	Use:   "validate-predictions",
	Short: "Score stored forecasts against realized generation",
	Long: `Compares forecasts of the last --days days with realized generation
per source and reports MAPE, MAE, RMSE, 95% interval coverage and bias.
A source whose MAPE exceeds the threshold raises an alert.

Example:
  go run ./cmd/energia validate-predictions
  go run ./cmd/energia validate-predictions --days 14 --fail-on-alert`,
	RunE: runValidatePredictions,
}

var (
	validateDays        int
	validateFailOnAlert bool
)

func init() {
	rootCmd.AddCommand(validatePredictionsCmd)

	validatePredictionsCmd.Flags().IntVar(&validateDays, "days", validationDays, "days to look back")
	validatePredictionsCmd.Flags().BoolVar(&validateFailOnAlert, "fail-on-alert", false, "exit non-zero when a source crosses the threshold")
}

func runValidatePredictions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader(out, "Prediction Validation", [2]string{"Days", fmt.Sprint(validateDays)})

	report, err := a.validator.Validate(ctx, validateDays)
	if err != nil {
		return err
	}
	printReport(out, report)

	if !report.Passed() && validateFailOnAlert {
		return fmt.Errorf("%d sources above the MAPE threshold", len(report.Alerts))
	}
	return nil
}

func printReport(w io.Writer, r *prediction.Report) {
	widths := []int{12, 6, 8, 8, 8, 8, 8}
	PrintTableHeader(w, []string{"FUENTE", "N", "MAPE", "MAE", "RMSE", "IC95", "SESGO"}, widths)
	for _, s := range r.Sources {
		PrintTableRow(w, []string{
			s.Fuente,
			fmt.Sprint(s.Observations),
			fmt.Sprintf("%.1f%%", s.MAPE*100),
			fmt.Sprintf("%.2f", s.MAE),
			fmt.Sprintf("%.2f", s.RMSE),
			fmt.Sprintf("%.0f%%", s.Coverage*100),
			fmt.Sprintf("%+.2f", s.Bias),
		}, widths)
	}

	for _, name := range r.Skipped {
		PrintInfo(w, fmt.Sprintf("%s skipped: too few observations", name))
	}
	for _, alert := range r.Alerts {
		PrintWarning(w, alert.Message)
	}
	if r.Passed() {
		PrintSuccess(w, "All sources within threshold")
	}
}
