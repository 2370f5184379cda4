package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coldvault-io/coldvault/internal/catalogue"
	"github.com/coldvault-io/coldvault/internal/clock"
	"github.com/coldvault-io/coldvault/internal/objectstore"
)

// ObjectLister is the subset of objectstore.Store bootstrap needs.
type ObjectLister interface {
	List(ctx context.Context) (map[string]objectstore.ObjectStat, error)
}

// Bootstrap reconstructs the glacier relation from authoritative storage
// when the catalogue has been lost: list every object to learn
// hash -> last-modified, scan every HashTracker, and for each tracked
// path insert a GlacierFile row. This lets a wiped local database be
// fully rebuilt (§4.6, P6).
func Bootstrap(ctx context.Context, cat *catalogue.Catalogue, objStore ObjectLister, metaStore MetadataStore, c clock.Clock, logger *slog.Logger) error {
	objects, err := objStore.List(ctx)
	if err != nil {
		return fmt.Errorf("engine: bootstrap list objects: %w", err)
	}

	trackers, err := metaStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("engine: bootstrap get_all trackers: %w", err)
	}

	restored := 0

	for _, tracker := range trackers {
		stat, ok := objects[tracker.Hash]

		mtime := c.Now()
		if ok {
			mtime = time.Unix(stat.LastModified, 0).UTC()
		}

		for path := range tracker.Paths {
			g := catalogue.GlacierFile{Path: path, ContentHash: tracker.Hash, MTime: mtime}
			if err := cat.UpsertGlacier(ctx, g); err != nil {
				return fmt.Errorf("engine: bootstrap upsert %s: %w", path, err)
			}

			restored++
		}
	}

	logger.Info("engine: bootstrap complete", "trackers", len(trackers), "paths_restored", restored)

	return nil
}
