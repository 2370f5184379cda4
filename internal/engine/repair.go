package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coldvault-io/coldvault/internal/catalogue"
)

// Repair is the supplemental recovery pass grounded on the reference
// implementation's fix_pending_* routines: it finds GlacierFile rows
// whose content hash has no corresponding HashTracker entry referencing
// them — the signature of a run that crashed between the catalogue
// commit and a prior metadata-store write never happening, or a
// metadata record that was since deleted out from under a still-local
// row — and deletes those rows from the catalogue, so the diff that
// follows treats each such path as new (or, if it is gone locally, no
// longer tracks it) instead of waiting for an incidental local change.
//
// This is a strict superset of the ordinary crash-recovery-on-next-run
// behaviour already guaranteed by the commit ordering (§4.2); it simply
// makes the repair pass operator-invokable ahead of time via
// "backup --repair" instead of purely implicit.
func Repair(ctx context.Context, cat *catalogue.Catalogue, metaStore MetadataStore, logger *slog.Logger) (int, error) {
	rows, err := cat.AllGlacier(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: repair list glacier: %w", err)
	}

	fixed := 0

	for _, row := range rows {
		if row.ContentHash == "" {
			continue
		}

		tracker, found, err := metaStore.Get(ctx, row.ContentHash)
		if err != nil {
			return fixed, fmt.Errorf("engine: repair lookup %s: %w", row.ContentHash, err)
		}

		if found {
			if _, ok := tracker.Paths[row.Path]; ok {
				continue
			}
		}

		logger.Warn("engine: repair found orphaned glacier row", "path", row.Path, "hash", row.ContentHash)

		if err := cat.DeleteGlacier(ctx, row.Path); err != nil {
			return fixed, fmt.Errorf("engine: repair delete glacier %s: %w", row.Path, err)
		}

		fixed++
	}

	logger.Info("engine: repair complete", "rows_fixed", fixed)

	return fixed, nil
}
