package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/energia/backend/internal/maintenance"
	"github.com/wonny/energia/backend/pkg/logger"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Housekeeping tools",
	Long: `Housekeeping tasks that do not touch the metric store.

Example:
  energia cleanup logs --days 30`,
}

var cleanupLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Delete old log files",
	Long: `Deletes *.log files under LOG_DIR older than the retention period.

Example:
  energia cleanup logs
  energia cleanup logs --dir /var/log/energia --days 14 --dry-run`,
	RunE: runCleanupLogs,
}

var (
	cleanupDir    string
	cleanupDays   int
	cleanupDryRun bool
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(cleanupLogsCmd)

	cleanupLogsCmd.Flags().StringVar(&cleanupDir, "dir", "", "log directory (default LOG_DIR)")
	cleanupLogsCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention in days (default LOG_RETENTION_DAYS)")
	cleanupLogsCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report without deleting")
}

func runCleanupLogs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Log cleanup does not need the database
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, days := cfg.Maintenance.LogDir, cfg.Maintenance.LogRetentionDays
	if cleanupDir != "" {
		dir = cleanupDir
	}
	if cleanupDays > 0 {
		days = cleanupDays
	}

	PrintHeader(out, "Log Cleanup", [2]string{"Dir", dir}, [2]string{"Retention", fmt.Sprintf("%d days", days)})

	result, err := maintenance.NewLogCleaner(dir, days, logger.New(cfg)).Clean(cleanupDryRun)
	if err != nil {
		PrintError(out, err.Error())
		return err
	}

	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}
	PrintSuccess(out, fmt.Sprintf("%s %d files (%d bytes)", verb, len(result.Removed), result.Bytes))
	return nil
}
