package engine

import (
	"time"

	"github.com/coldvault-io/coldvault/internal/metastore"
)

// epoch is the sentinel expiration metastore.NewEmptyTracker uses for a
// hash that has never existed, distinguishing "never existed" from "a
// tombstone whose retention window already elapsed" even though both
// satisfy old.expiration < now.
var epoch = time.Unix(0, 0).UTC()

// Classify implements the §4.2 decision table as a single tagged-variant
// computation over (old, new, now), per the Design Notes instruction to
// eliminate nested boolean dispatch.
func Classify(old, newT *metastore.HashTracker, now time.Time) PlanAction {
	oldEmpty := len(old.Paths) == 0
	newEmpty := len(newT.Paths) == 0

	switch {
	case !oldEmpty && newEmpty:
		return PlanDelete
	case oldEmpty && !newEmpty:
		switch {
		case old.Expiration.Equal(epoch):
			return PlanUpload
		case !old.Expiration.After(now):
			return PlanReupload
		default:
			return PlanUndelete
		}
	default:
		// non-empty -> non-empty (rename/dedup) or empty -> empty (vacuous);
		// both are metadata-only, no object-store mutation.
		return PlanNoOp
	}
}
