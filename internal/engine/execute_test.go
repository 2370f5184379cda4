package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coldvault-io/coldvault/internal/catalogue"
	"github.com/coldvault-io/coldvault/internal/clock"
	"github.com/coldvault-io/coldvault/internal/metastore"
)

type fakeObjectStore struct {
	puts      map[string]string
	deletes   map[string]bool
	undeletes map[string]bool
	failUndelete bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		puts:      make(map[string]string),
		deletes:   make(map[string]bool),
		undeletes: make(map[string]bool),
	}
}

func (f *fakeObjectStore) Put(_ context.Context, key, path string) error {
	f.puts[key] = path
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.deletes[key] = true
	return nil
}

func (f *fakeObjectStore) RestoreFromDelete(_ context.Context, key string) error {
	if f.failUndelete {
		return os.ErrNotExist
	}

	f.undeletes[key] = true

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()

	cat, err := catalogue.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = cat.Close() })

	return cat
}

func TestExecute_DryRunMutatesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := openTestCatalogue(t)
	objStore := newFakeObjectStore()
	metaStore := newFakeMetaStore()

	now := time.Now()
	plan := map[string]*HashTrackerChange{
		"hash1": {
			Hash:    "hash1",
			Old:     metastore.NewEmptyTracker("hash1"),
			New:     tracker([]string{"/a/f1"}, now),
			created: []pathMTime{{path: "/a/f1", mtime: now}},
		},
	}

	summary := Execute(ctx, plan, objStore, metaStore, cat, clock.System{}, Options{DryRun: true}, testLogger())

	require.True(t, summary.DryRun)
	require.Empty(t, objStore.puts)
	require.Empty(t, metaStore.trackers)

	rows, err := cat.AllGlacier(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestExecute_UploadCommitsAllThreeStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := openTestCatalogue(t)
	objStore := newFakeObjectStore()
	metaStore := newFakeMetaStore()

	tmpFile, err := os.CreateTemp(t.TempDir(), "f1")
	require.NoError(t, err)
	_, err = tmpFile.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	now := time.Now()
	plan := map[string]*HashTrackerChange{
		"hash1": {
			Hash:    "hash1",
			Old:     metastore.NewEmptyTracker("hash1"),
			New:     tracker([]string{tmpFile.Name()}, now),
			created: []pathMTime{{path: tmpFile.Name(), mtime: now}},
		},
	}

	summary := Execute(ctx, plan, objStore, metaStore, cat, clock.System{}, Options{MinStorageDuration: time.Hour}, testLogger())

	require.Equal(t, 1, summary.Successes)
	require.Equal(t, 1, summary.Uploaded)
	require.Equal(t, tmpFile.Name(), objStore.puts["hash1"])
	require.Contains(t, metaStore.trackers, "hash1")

	rows, err := cat.AllGlacier(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "hash1", rows[0].ContentHash)
}

func TestExecute_DeleteSuppressedWhenPathRecreatedElsewhere(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := openTestCatalogue(t)
	objStore := newFakeObjectStore()
	metaStore := newFakeMetaStore()

	require.NoError(t, cat.UpsertGlacier(ctx, catalogue.GlacierFile{Path: "/a/f1", ContentHash: "oldhash", MTime: time.Now()}))

	now := time.Now()
	plan := map[string]*HashTrackerChange{
		"oldhash": {
			Hash:    "oldhash",
			Old:     tracker([]string{"/a/f1"}, now),
			New:     metastore.NewEmptyTracker("oldhash"),
			deleted: []string{"/a/f1"},
		},
		"newhash": {
			Hash:    "newhash",
			Old:     metastore.NewEmptyTracker("newhash"),
			New:     tracker([]string{"/a/f1"}, now),
			created: []pathMTime{{path: "/a/f1", mtime: now}},
		},
	}

	_ = Execute(ctx, plan, objStore, metaStore, cat, clock.System{}, Options{MinStorageDuration: time.Hour}, testLogger())

	rows, err := cat.AllGlacier(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "newhash", rows[0].ContentHash)
}

func TestExecute_TouchOnlyRefreshesCatalogueMTimeWithoutStoreMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := openTestCatalogue(t)
	objStore := newFakeObjectStore()
	metaStore := newFakeMetaStore()

	oldMTime := time.Now().Add(-time.Hour)
	require.NoError(t, cat.UpsertGlacier(ctx, catalogue.GlacierFile{Path: "/a/f1", ContentHash: "hash1", MTime: oldMTime}))

	newMTime := time.Now()
	existing := tracker([]string{"/a/f1"}, newMTime)
	metaStore.trackers["hash1"] = existing

	plan := map[string]*HashTrackerChange{
		"hash1": {
			Hash:    existing.Hash,
			Old:     existing,
			New:     existing,
			touched: []pathMTime{{path: "/a/f1", mtime: newMTime}},
		},
	}

	summary := Execute(ctx, plan, objStore, metaStore, cat, clock.System{}, Options{MinStorageDuration: time.Hour}, testLogger())

	require.Equal(t, 1, summary.Successes)
	require.Empty(t, objStore.puts)
	require.Empty(t, objStore.deletes)
	require.Empty(t, objStore.undeletes)

	g, err := cat.GetGlacier(ctx, "/a/f1")
	require.NoError(t, err)
	require.NotNil(t, g)
	require.WithinDuration(t, newMTime, g.MTime, time.Second)
}
