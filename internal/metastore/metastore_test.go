package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(InMemoryConfig())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	tracker := &HashTracker{
		Hash:       "abc123",
		Paths:      map[string]struct{}{"/a/f1": {}, "/a/f2": {}},
		Expiration: now,
	}

	require.NoError(t, store.Put(ctx, tracker))

	got, found, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tracker.Hash, got.Hash)
	require.True(t, got.Expiration.Equal(now))
	require.Contains(t, got.Paths, "/a/f1")
	require.Contains(t, got.Paths, "/a/f2")
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	got, found, err := store.Get(ctx, "nonexistent")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, got)
}

func TestStore_EmptyPathsEncodingRoundTripsViaNoneSentinel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	tracker := NewEmptyTracker("tombstone")
	tracker.Expiration = time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.Put(ctx, tracker))

	got, found, err := store.Get(ctx, "tombstone")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, got.Paths)
	require.False(t, got.HasPaths())
}

func TestStore_UpdateDeletesExpiredEmptyTracker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	tracker := NewEmptyTracker("gone")
	tracker.Expiration = now.Add(-time.Hour)

	require.NoError(t, store.Put(ctx, tracker))
	require.NoError(t, store.Update(ctx, tracker, now))

	_, found, err := store.Get(ctx, "gone")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStore_UpdateKeepsUnexpiredEmptyTracker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	tracker := NewEmptyTracker("still-in-retention")
	tracker.Expiration = now.Add(time.Hour)

	require.NoError(t, store.Put(ctx, tracker))
	require.NoError(t, store.Update(ctx, tracker, now))

	_, found, err := store.Get(ctx, "still-in-retention")
	require.NoError(t, err)
	require.True(t, found)
}

func TestStore_GetAllReturnsEveryTracker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, &HashTracker{Hash: "h1", Paths: map[string]struct{}{"/a": {}}}))
	require.NoError(t, store.Put(ctx, &HashTracker{Hash: "h2", Paths: map[string]struct{}{"/b": {}}}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
