package maintenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/energia/backend/pkg/logger"
)

func writeFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("line\n"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestLogCleaner_Clean(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "ingest.log")
	nested := filepath.Join(dir, "archive", "scheduler.log")
	fresh := filepath.Join(dir, "api.log")
	other := filepath.Join(dir, "notes.txt")

	writeFile(t, old, 40*24*time.Hour)
	writeFile(t, nested, 31*24*time.Hour)
	writeFile(t, fresh, 2*24*time.Hour)
	writeFile(t, other, 90*24*time.Hour)

	cleaner := NewLogCleaner(dir, 30, logger.Nop())

	dry, err := cleaner.Clean(true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{old, nested}, dry.Removed)
	assert.FileExists(t, old, "dry-run keeps files")

	res, err := cleaner.Clean(false)
	require.NoError(t, err)
	assert.ElementsMatch(t, dry.Removed, res.Removed)
	assert.EqualValues(t, 10, res.Bytes)
	assert.NoFileExists(t, old)
	assert.NoFileExists(t, nested)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestLogCleaner_MissingDir(t *testing.T) {
	cleaner := NewLogCleaner(filepath.Join(t.TempDir(), "absent"), 30, logger.Nop())
	res, err := cleaner.Clean(false)
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
}

func TestLogCleaner_InvalidRetention(t *testing.T) {
	_, err := NewLogCleaner(t.TempDir(), 0, logger.Nop()).Clean(true)
	assert.Error(t, err)
}
