// Package restore implements the read-only restore path: enumerate
// every HashTracker, download each hash once, and duplicate the bytes
// to every path that references it.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coldvault-io/coldvault/internal/engine"
)

// ObjectGetter is the subset of objectstore.Store restore needs.
type ObjectGetter interface {
	Get(ctx context.Context, key string, destinations []string) error
}

// defaultConcurrency bounds how many hashes are downloaded at once,
// mirroring the bounded download-worker-pool idiom from the reference
// transfer manager.
const defaultConcurrency = 8

// Options configures a restore run.
type Options struct {
	Concurrency int
}

// Summary reports how many hashes and paths were restored.
type Summary struct {
	Hashes int
	Paths  int
	Errors int
}

// Run downloads every tracked hash once and fans it out to every path
// that references it, recreating parent directories as needed. Paths
// are stored absolute in the metadata store (as recorded by the
// scanner against the original target_dir), so each destination is
// rebuilt under targetDir by joining it with the tracked absolute path
// rather than overwriting the original location — the same relocation
// the original implementation performs (`build_restore_path`), so
// "restore --target-dir /fresh" populates /fresh instead of the
// machine the backup was taken from.
func Run(ctx context.Context, targetDir string, metaStore engine.MetadataStore, objStore ObjectGetter, opts Options, logger *slog.Logger) (Summary, error) {
	trackers, err := metaStore.GetAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("restore: get_all trackers: %w", err)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu      sync.Mutex
		summary Summary
	)

	for _, tracker := range trackers {
		tracker := tracker

		if len(tracker.Paths) == 0 {
			continue
		}

		destinations := make([]string, 0, len(tracker.Paths))
		for p := range tracker.Paths {
			destinations = append(destinations, filepath.Join(targetDir, p))
		}

		g.Go(func() error {
			err := objStore.Get(gctx, tracker.Hash, destinations)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				logger.Error("restore: download failed", "hash", tracker.Hash, "error", err)
				summary.Errors++

				return nil
			}

			summary.Hashes++
			summary.Paths += len(destinations)

			return nil
		})
	}

	_ = g.Wait()

	logger.Info("restore: complete", "hashes", summary.Hashes, "paths", summary.Paths, "errors", summary.Errors)

	return summary, nil
}
