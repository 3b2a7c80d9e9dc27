package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	catalogFile string
	env         string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "energia",
	Short: "Colombian power-market metrics pipeline",
	Long: `energia Unified CLI

Ingests XM market metrics into PostgreSQL, keeps the metrics table
clean and serves it over HTTP.

Usage:
  go run ./cmd/energia [command]

Examples:
  go run ./cmd/energia migrate
  go run ./cmd/energia ingest --mode incremental
  go run ./cmd/energia autocorrect --dry-run
  go run ./cmd/energia scheduler start
  go run ./cmd/energia api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "metric catalog YAML (default is METRICS_CATALOG or built-in)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
