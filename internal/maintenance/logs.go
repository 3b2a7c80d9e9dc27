// Package maintenance holds housekeeping tasks of the daily maintenance job.
package maintenance

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/energia/backend/pkg/logger"
)

// LogCleanupResult reports one cleanup
type LogCleanupResult struct {
	Dir     string   `json:"dir"`
	DryRun  bool     `json:"dry_run"`
	Removed []string `json:"removed"`
	Bytes   int64    `json:"bytes"`
}

// LogCleaner deletes *.log files older than a retention period
type LogCleaner struct {
	dir       string
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewLogCleaner creates a cleaner for dir keeping retentionDays of logs
func NewLogCleaner(dir string, retentionDays int, log *logger.Logger) *LogCleaner {
	return &LogCleaner{
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    log.Module("maintenance"),
		now:       time.Now,
	}
}

// Clean removes expired log files. A missing directory is not an error.
// In dry-run the files are listed but kept.
func (c *LogCleaner) Clean(dryRun bool) (*LogCleanupResult, error) {
	result := &LogCleanupResult{Dir: c.dir, DryRun: dryRun}
	if c.retention <= 0 {
		return result, fmt.Errorf("log retention must be positive")
	}
	cutoff := c.now().Add(-c.retention)

	var errs []error
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == c.dir {
				return filepath.SkipDir
			}
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".log") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if !dryRun {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
				return nil
			}
		}
		result.Removed = append(result.Removed, path)
		result.Bytes += info.Size()
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"dir":     c.dir,
		"dry_run": dryRun,
		"removed": len(result.Removed),
		"bytes":   result.Bytes,
	}).Info("Log cleanup completed")

	return result, errors.Join(errs...)
}
