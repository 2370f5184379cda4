package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldvault-io/coldvault/internal/catalogue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFilter_Excluded(t *testing.T) {
	t.Parallel()

	f := NewFilter([]string{`\.tmp$`, `^cache/`})

	require.True(t, f.Excluded("report.tmp"))
	require.True(t, f.Excluded("cache/entry1"))
	require.False(t, f.Excluded("docs/report.txt"))
}

func TestFilter_NoPatternsExcludesNothing(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil)

	require.False(t, f.Excluded("anything"))
}

func TestNewFilter_InvalidPatternPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		NewFilter([]string{"("})
	})
}

func TestScanner_ScanRecordsNonExcludedFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("data"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("data"), 0o644))

	cat, err := catalogue.Open(ctx, ":memory:", testLogger())
	require.NoError(t, err)
	defer cat.Close()

	s := New(cat, NewFilter([]string{`\.tmp$`}), testLogger())
	require.NoError(t, s.Scan(ctx, dir))

	newFiles, err := cat.NewFiles(ctx)
	require.NoError(t, err)

	var paths []string
	for _, f := range newFiles {
		paths = append(paths, f.Path)
	}

	require.Contains(t, paths, filepath.Join(dir, "keep.txt"))
	require.Contains(t, paths, filepath.Join(dir, "sub", "nested.txt"))
	require.NotContains(t, paths, filepath.Join(dir, "skip.tmp"))
}
