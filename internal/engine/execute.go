package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coldvault-io/coldvault/internal/catalogue"
	"github.com/coldvault-io/coldvault/internal/clock"
)

// ObjectStore is the subset of objectstore.Store the execute stage
// needs, narrowed to an interface for fakes in tests.
type ObjectStore interface {
	Put(ctx context.Context, key, path string) error
	Delete(ctx context.Context, key string) error
	RestoreFromDelete(ctx context.Context, key string) error
}

// defaultMaxConcurrentHashes bounds how many independent per-hash commit
// sequences run at once, mirroring the bounded-worker-pool idiom used
// throughout the reference examples' transfer managers.
const defaultMaxConcurrentHashes = 16

// Options configures the execute stage.
type Options struct {
	MinStorageDuration  time.Duration
	DryRun              bool
	MaxConcurrentHashes int
}

// Execute runs the per-hash commit protocol over plan: for every hash
// whose new state differs from old, it issues the object-store
// mutation, then the metadata-store mutation, then the local-catalogue
// mutations — strictly sequential within a hash, concurrent across
// hashes via a bounded errgroup, awaited as a batch at the end of the
// run for final accounting.
//
// In dry-run mode the execute stage is short-circuited entirely: the
// plan is inspected for logging only, and no mutation of any kind
// occurs.
func Execute(ctx context.Context, plan map[string]*HashTrackerChange, objStore ObjectStore, metaStore MetadataStore, cat *catalogue.Catalogue, c clock.Clock, opts Options, logger *slog.Logger) RunSummary {
	summary := RunSummary{RunID: uuid.New().String(), DryRun: opts.DryRun, Started: c.Now()}

	// active holds every hash that needs commit work this run: either its
	// path set changed (upload/reupload/undelete/delete/rename-dedup) or
	// one of its paths was merely touched (mtime advanced, content
	// didn't) and needs its catalogue row refreshed so it stops
	// re-appearing in changed_files() forever.
	active := make([]*HashTrackerChange, 0, len(plan))

	for _, change := range plan {
		if change.changed() || len(change.touched) > 0 {
			active = append(active, change)
		}
	}

	if opts.DryRun {
		for _, change := range active {
			action := Classify(change.Old, change.New, c.Now())
			logger.Info("dry-run: planned action", "hash", change.Hash, "action", action.String())
		}

		summary.Finished = c.Now()

		return summary
	}

	// Pre-compute the global created/deleted path sets across the whole
	// run, before any concurrent mutation begins, so a path touched by
	// two hashes in the same run (a content change) doesn't take a
	// spurious catalogue delete-then-insert round trip.
	createdPaths := make(map[string]struct{})
	deletedPaths := make(map[string]struct{})

	for _, change := range active {
		for _, p := range change.created {
			createdPaths[p.path] = struct{}{}
		}

		for _, p := range change.deleted {
			deletedPaths[p] = struct{}{}
		}
	}

	limit := opts.MaxConcurrentHashes
	if limit <= 0 {
		limit = defaultMaxConcurrentHashes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex

	for _, change := range active {
		change := change

		g.Go(func() error {
			result := commitHash(gctx, change, objStore, metaStore, cat, c, opts.MinStorageDuration, createdPaths, logger)

			mu.Lock()
			defer mu.Unlock()

			if result.err != nil {
				summary.Failures++

				return nil // per-hash failures don't cancel sibling goroutines
			}

			summary.Successes++
			summary.BytesUploaded += result.bytes

			switch result.action {
			case PlanUpload:
				summary.Uploaded++
			case PlanReupload:
				summary.Reuploaded++
			case PlanUndelete:
				summary.Undeleted++
			case PlanDelete:
				summary.Deleted++
			}

			return nil
		})
	}

	_ = g.Wait()

	summary.Finished = c.Now()

	return summary
}

type commitResult struct {
	action PlanAction
	bytes  int64
	err    error
}

// commitHash runs the strict object store → metadata store → local
// catalogue sequence for one hash. Any step failing stops the sequence
// for this hash only; sibling hashes are unaffected.
//
// A hash whose path set didn't change at all — only one of its paths
// was touched (mtime advanced, content didn't) — skips the object and
// metadata steps entirely: there is nothing for either store to do,
// and a redundant metadata Put would be pure overhead. Only the
// catalogue row is refreshed, so the path stops re-appearing in
// changed_files() on the next run.
func commitHash(ctx context.Context, change *HashTrackerChange, objStore ObjectStore, metaStore MetadataStore, cat *catalogue.Catalogue, c clock.Clock, minStorageDuration time.Duration, createdElsewhere map[string]struct{}, logger *slog.Logger) commitResult {
	now := c.Now()

	if !change.changed() {
		if err := commitCatalogue(ctx, change, cat, createdElsewhere); err != nil {
			logger.Error("engine: catalogue step failed", "hash", change.Hash, "action", PlanNoOp.String(), "error", err)
			return commitResult{action: PlanNoOp, err: err}
		}

		return commitResult{action: PlanNoOp}
	}

	action := Classify(change.Old, change.New, now)

	bytes, err := commitObjectStore(ctx, change, action, objStore)
	if err != nil {
		logger.Error("engine: object store step failed", "hash", change.Hash, "action", action.String(), "error", err)
		return commitResult{action: action, err: err}
	}

	switch action {
	case PlanUpload, PlanReupload, PlanUndelete:
		change.New.Expiration = now.Add(minStorageDuration)
	}

	if err := commitMetadataStore(ctx, change, metaStore, now); err != nil {
		logger.Error("engine: metadata store step failed", "hash", change.Hash, "action", action.String(), "error", err)
		return commitResult{action: action, err: err}
	}

	if err := commitCatalogue(ctx, change, cat, createdElsewhere); err != nil {
		logger.Error("engine: catalogue step failed", "hash", change.Hash, "action", action.String(), "error", err)
		return commitResult{action: action, err: err}
	}

	return commitResult{action: action, bytes: bytes}
}

var errNoCreatedFiles = errors.New("engine: planned upload with no created files")

// commitObjectStore issues the object-store mutation for action and
// reports the byte count of any file actually uploaded, for the run
// summary's BytesUploaded total.
func commitObjectStore(ctx context.Context, change *HashTrackerChange, action PlanAction, objStore ObjectStore) (int64, error) {
	switch action {
	case PlanDelete:
		return 0, objStore.Delete(ctx, change.Hash)
	case PlanUpload, PlanReupload:
		paths := change.CreatedPaths()
		if len(paths) == 0 {
			// Invariant violation (taxonomy #5): a planned upload must have
			// at least one representative path.
			return 0, errNoCreatedFiles
		}

		return fileSize(paths[0]), objStore.Put(ctx, change.Hash, paths[0])
	case PlanUndelete:
		err := objStore.RestoreFromDelete(ctx, change.Hash)
		if err == nil {
			return 0, nil
		}

		// Restore-from-delete failed at the object-store layer: fall back
		// to Put, per §4.2's tie-break rule.
		paths := change.CreatedPaths()
		if len(paths) == 0 {
			return 0, errNoCreatedFiles
		}

		return fileSize(paths[0]), objStore.Put(ctx, change.Hash, paths[0])
	default:
		return 0, nil
	}
}

// fileSize returns path's size, or 0 if it cannot be stat'd — the byte
// count is purely advisory for the run summary and never blocks a commit.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return info.Size()
}

func commitMetadataStore(ctx context.Context, change *HashTrackerChange, metaStore MetadataStore, now time.Time) error {
	if len(change.New.Paths) == 0 && !change.New.Expiration.After(now) {
		return metaStore.Delete(ctx, change.Hash)
	}

	return metaStore.Put(ctx, change.New)
}

// commitCatalogue applies the local-catalogue mutations for the paths
// touched by this hash. A delete is suppressed when the path also
// appears among this run's created paths — it will be re-inserted
// (possibly under a different hash) rather than transiently removed.
func commitCatalogue(ctx context.Context, change *HashTrackerChange, cat *catalogue.Catalogue, createdElsewhere map[string]struct{}) error {
	for _, p := range change.created {
		g := catalogue.GlacierFile{Path: p.path, ContentHash: change.Hash, MTime: p.mtime}
		if err := cat.UpsertGlacier(ctx, g); err != nil {
			return err
		}
	}

	for _, p := range change.touched {
		g := catalogue.GlacierFile{Path: p.path, ContentHash: change.Hash, MTime: p.mtime}
		if err := cat.UpsertGlacier(ctx, g); err != nil {
			return err
		}
	}

	for _, p := range change.deleted {
		if _, reinserted := createdElsewhere[p]; reinserted {
			continue
		}

		if err := cat.DeleteGlacier(ctx, p); err != nil {
			return err
		}
	}

	return nil
}
