package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the pipeline tables",
	Long: `Creates the metrics, catalogs and predictions tables and their
indexes when they do not exist yet.

Example:
  go run ./cmd/energia migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database.URL, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		PrintError(cmd.OutOrStdout(), err.Error())
		return err
	}

	PrintSuccess(cmd.OutOrStdout(), "Schema up to date")
	return nil
}
