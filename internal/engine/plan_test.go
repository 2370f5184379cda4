package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coldvault-io/coldvault/internal/metastore"
)

type fakeMetaStore struct {
	trackers map[string]*metastore.HashTracker
}

func newFakeMetaStore() *fakeMetaStore {
	return &fakeMetaStore{trackers: make(map[string]*metastore.HashTracker)}
}

func (f *fakeMetaStore) Get(_ context.Context, hash string) (*metastore.HashTracker, bool, error) {
	t, ok := f.trackers[hash]
	return t, ok, nil
}

func (f *fakeMetaStore) GetAll(_ context.Context) ([]*metastore.HashTracker, error) {
	out := make([]*metastore.HashTracker, 0, len(f.trackers))
	for _, t := range f.trackers {
		out = append(out, t)
	}

	return out, nil
}

func (f *fakeMetaStore) Put(_ context.Context, t *metastore.HashTracker) error {
	f.trackers[t.Hash] = t
	return nil
}

func (f *fakeMetaStore) Delete(_ context.Context, hash string) error {
	delete(f.trackers, hash)
	return nil
}

func (f *fakeMetaStore) Update(_ context.Context, t *metastore.HashTracker, now time.Time) error {
	if !t.HasPaths() && !t.Expiration.After(now) {
		delete(f.trackers, t.Hash)
		return nil
	}

	f.trackers[t.Hash] = t

	return nil
}

func TestBuildPlan_NewFileIsUpload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := newFakeMetaStore()

	changes := []FileChange{
		{Path: "/a/f1", MTime: time.Now(), NewHash: "hash1"},
	}

	plan, err := BuildPlan(ctx, ms, changes)
	require.NoError(t, err)
	require.Contains(t, plan, "hash1")

	change := plan["hash1"]
	require.Contains(t, change.New.Paths, "/a/f1")
	require.Empty(t, change.Old.Paths)
}

func TestBuildPlan_ContentChangeDedupesPathInOneRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := newFakeMetaStore()
	ms.trackers["oldhash"] = &metastore.HashTracker{
		Hash:  "oldhash",
		Paths: map[string]struct{}{"/a/f1": {}},
	}

	changes := []FileChange{
		{Path: "/a/f1", MTime: time.Now(), NewHash: "newhash", OldHash: "oldhash"},
	}

	plan, err := BuildPlan(ctx, ms, changes)
	require.NoError(t, err)

	require.Contains(t, plan, "newhash")
	require.Contains(t, plan["newhash"].New.Paths, "/a/f1")

	require.Contains(t, plan, "oldhash")
	require.Empty(t, plan["oldhash"].New.Paths)
	require.Equal(t, []string{"/a/f1"}, plan["oldhash"].deleted)
}

func TestBuildPlan_TouchWithUnchangedHashIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := newFakeMetaStore()
	ms.trackers["hash1"] = &metastore.HashTracker{
		Hash:  "hash1",
		Paths: map[string]struct{}{"/a/f1": {}},
	}

	changes := []FileChange{
		{Path: "/a/f1", MTime: time.Now(), NewHash: "hash1", OldHash: "hash1"},
	}

	plan, err := BuildPlan(ctx, ms, changes)
	require.NoError(t, err)

	require.Contains(t, plan, "hash1")
	require.Contains(t, plan["hash1"].New.Paths, "/a/f1")
	require.Empty(t, plan["hash1"].deleted)
	require.Empty(t, plan["hash1"].created)
	require.Len(t, plan["hash1"].touched, 1)
	require.Equal(t, "/a/f1", plan["hash1"].touched[0].path)
	require.False(t, plan["hash1"].changed())
}

func TestBuildPlan_MissingFileMarksDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := newFakeMetaStore()
	ms.trackers["hash1"] = &metastore.HashTracker{
		Hash:  "hash1",
		Paths: map[string]struct{}{"/a/f1": {}},
	}

	changes := []FileChange{
		{Path: "/a/f1", OldHash: "hash1"},
	}

	plan, err := BuildPlan(ctx, ms, changes)
	require.NoError(t, err)
	require.Empty(t, plan["hash1"].New.Paths)
}
