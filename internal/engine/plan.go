package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/coldvault-io/coldvault/internal/metastore"
)

// MetadataStore is the subset of metastore.Store the plan and execute
// stages need, narrowed to an interface so tests can substitute an
// in-memory fake.
type MetadataStore interface {
	Get(ctx context.Context, hash string) (*metastore.HashTracker, bool, error)
	GetAll(ctx context.Context) ([]*metastore.HashTracker, error)
	Put(ctx context.Context, tracker *metastore.HashTracker) error
	Delete(ctx context.Context, hash string) error
	Update(ctx context.Context, tracker *metastore.HashTracker, now time.Time) error
}

// BuildPlan turns the diff stage's FileChange records into a
// map[hash]*HashTrackerChange. It performs O(hashes touched) metadata
// store lookups, not O(paths), and completes all of them before any
// mutation begins (the execute stage runs separately).
func BuildPlan(ctx context.Context, ms MetadataStore, changes []FileChange) (map[string]*HashTrackerChange, error) {
	plan := make(map[string]*HashTrackerChange)

	for _, fc := range changes {
		if fc.NewHash != "" {
			c, err := getOrCreate(ctx, ms, plan, fc.NewHash)
			if err != nil {
				return nil, err
			}

			if fc.OldHash == fc.NewHash {
				// A changed_files() hit whose hash didn't actually move: a
				// touch. The path is already in New.Paths (carried over
				// from Old.Paths by getOrCreate), so only the catalogue's
				// stored mtime needs to advance.
				c.touched = append(c.touched, pathMTime{path: fc.Path, mtime: fc.MTime})
			} else {
				c.New.Paths[fc.Path] = struct{}{}
				c.created = append(c.created, pathMTime{path: fc.Path, mtime: fc.MTime})
			}
		}

		if fc.OldHash != "" && fc.OldHash != fc.NewHash {
			c, err := getOrCreate(ctx, ms, plan, fc.OldHash)
			if err != nil {
				return nil, err
			}

			delete(c.New.Paths, fc.Path)
			c.deleted = append(c.deleted, fc.Path)
		}
	}

	return plan, nil
}

func getOrCreate(ctx context.Context, ms MetadataStore, plan map[string]*HashTrackerChange, hash string) (*HashTrackerChange, error) {
	if c, ok := plan[hash]; ok {
		return c, nil
	}

	old, found, err := ms.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("engine: plan lookup %s: %w", hash, err)
	}

	if !found {
		old = metastore.NewEmptyTracker(hash)
	}

	newPaths := make(map[string]struct{}, len(old.Paths))
	for p := range old.Paths {
		newPaths[p] = struct{}{}
	}

	newTracker := &metastore.HashTracker{Hash: hash, Paths: newPaths, Expiration: old.Expiration}

	c := &HashTrackerChange{Hash: hash, Old: old, New: newTracker}
	plan[hash] = c

	return c, nil
}
