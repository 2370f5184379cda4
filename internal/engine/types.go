// Package engine implements the reconciliation engine: the diff, plan,
// and execute stages that drive the strictly-ordered object store →
// metadata store → local catalogue commit protocol per content hash.
package engine

import (
	"time"

	"github.com/coldvault-io/coldvault/internal/metastore"
)

// PlanAction is the explicit tagged variant computed once per hash from
// (old, new, now), replacing the nested boolean dispatch the reference
// implementation used.
type PlanAction int

const (
	// PlanNoOp covers both the vacuous case (both path sets empty) and
	// the rename/dedup case (both non-empty): no object-store mutation,
	// metadata-only.
	PlanNoOp PlanAction = iota
	// PlanUpload is a never-before-seen hash: old tracker didn't exist.
	PlanUpload
	// PlanReupload is a cold re-upload: the tombstone existed and its
	// retention window had already elapsed.
	PlanReupload
	// PlanUndelete restores a tombstone still within its retention window.
	PlanUndelete
	// PlanDelete removes the last path referencing a hash.
	PlanDelete
)

// String renders the action for logs.
func (a PlanAction) String() string {
	switch a {
	case PlanUpload:
		return "upload"
	case PlanReupload:
		return "reupload"
	case PlanUndelete:
		return "undelete"
	case PlanDelete:
		return "delete"
	default:
		return "noop"
	}
}

// pathMTime pairs a path with the local modification time it was seen
// at, needed to write the GlacierFile row on commit.
type pathMTime struct {
	path  string
	mtime time.Time
}

// HashTrackerChange holds the before/after snapshot for one content hash
// touched during a run, plus the paths that were inserted into or
// removed from its path set.
type HashTrackerChange struct {
	Hash string
	Old  *metastore.HashTracker
	New  *metastore.HashTracker

	created []pathMTime
	deleted []string

	// touched holds paths whose mtime advanced but whose content hash
	// did not (a touch): the path set is unchanged, so no object-store
	// or metadata-store mutation is needed, but the catalogue's glacier
	// row must still be refreshed with the new mtime or the next run's
	// changed_files() query reports the same path forever.
	touched []pathMTime
}

// CreatedPaths returns the paths added to this hash's tracker this run,
// in insertion order (the first is the Put representative, per the
// deterministic tie-break rule).
func (c *HashTrackerChange) CreatedPaths() []string {
	out := make([]string, len(c.created))
	for i, p := range c.created {
		out[i] = p.path
	}

	return out
}

// changed reports whether the tracker's effective state differs from
// what was fetched — the gate used to decide whether a hash needs any
// commit work at all.
func (c *HashTrackerChange) changed() bool {
	if len(c.Old.Paths) != len(c.New.Paths) {
		return true
	}

	for p := range c.New.Paths {
		if _, ok := c.Old.Paths[p]; !ok {
			return true
		}
	}

	for p := range c.Old.Paths {
		if _, ok := c.New.Paths[p]; !ok {
			return true
		}
	}

	return false
}

// RunSummary aggregates the outcome of one engine run for the CLI's
// final log line and optional notification push.
type RunSummary struct {
	// RunID tags this run the way planner.go tags a sync cycle, so a
	// run's log lines and its notify push can be correlated after the
	// fact.
	RunID string

	Successes int
	Failures  int

	Uploaded   int
	Reuploaded int
	Undeleted  int
	Deleted    int

	BytesUploaded int64

	DryRun bool

	Started  time.Time
	Finished time.Time
}

// Duration reports how long the run took.
func (r RunSummary) Duration() time.Duration { return r.Finished.Sub(r.Started) }
