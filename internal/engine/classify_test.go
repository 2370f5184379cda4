package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coldvault-io/coldvault/internal/metastore"
)

func tracker(paths []string, expiration time.Time) *metastore.HashTracker {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}

	return &metastore.HashTracker{Hash: "h", Paths: set, Expiration: expiration}
}

func TestClassify_Upload(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := metastore.NewEmptyTracker("h")
	newT := tracker([]string{"a"}, now)

	assert.Equal(t, PlanUpload, Classify(old, newT, now))
}

func TestClassify_Reupload(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := tracker(nil, now.Add(-time.Hour)) // retention already elapsed
	newT := tracker([]string{"a"}, now)

	assert.Equal(t, PlanReupload, Classify(old, newT, now))
}

func TestClassify_Undelete(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := tracker(nil, now.Add(time.Hour)) // still within retention
	newT := tracker([]string{"a"}, now)

	assert.Equal(t, PlanUndelete, Classify(old, newT, now))
}

func TestClassify_Delete(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := tracker([]string{"a"}, now)
	newT := tracker(nil, now)

	assert.Equal(t, PlanDelete, Classify(old, newT, now))
}

func TestClassify_NoOpBothEmpty(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := metastore.NewEmptyTracker("h")
	newT := metastore.NewEmptyTracker("h")

	assert.Equal(t, PlanNoOp, Classify(old, newT, now))
}

func TestClassify_NoOpRename(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := tracker([]string{"a"}, now)
	newT := tracker([]string{"b"}, now)

	assert.Equal(t, PlanNoOp, Classify(old, newT, now))
}
