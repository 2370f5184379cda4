package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/coldvault-io/coldvault/internal/catalogue"
	"github.com/coldvault-io/coldvault/internal/hashing"
)

// FileChange is one (path, event) diff record: a new path, a missing
// path, or a path whose content changed. Hashing happens synchronously
// during the diff stage and is memoised here.
type FileChange struct {
	Path    string
	MTime   time.Time
	NewHash string // "" if the path disappeared
	OldHash string // "" if the path is new
}

// Diff produces the three FileChange sets — new, changed, missing — by
// reading the catalogue's new_files, changed_files and missing_files
// queries and hashing every new or changed path exactly once.
func Diff(ctx context.Context, cat *catalogue.Catalogue) ([]FileChange, error) {
	var changes []FileChange

	newFiles, err := cat.NewFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: diff new_files: %w", err)
	}

	for _, f := range newFiles {
		hash, err := hashing.HashFile(f.Path)
		if err != nil {
			// Filesystem I/O error during hashing: skip the path, continue
			// (taxonomy #2).
			continue
		}

		changes = append(changes, FileChange{Path: f.Path, MTime: f.MTime, NewHash: hash})
	}

	changedFiles, err := cat.ChangedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: diff changed_files: %w", err)
	}

	for _, f := range changedFiles {
		hash, err := hashing.HashFile(f.Path)
		if err != nil {
			continue
		}

		changes = append(changes, FileChange{Path: f.Path, MTime: f.MTime, NewHash: hash, OldHash: f.OldHash})
	}

	missingFiles, err := cat.MissingFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: diff missing_files: %w", err)
	}

	for _, f := range missingFiles {
		changes = append(changes, FileChange{Path: f.Path, MTime: f.MTime, OldHash: f.ContentHash})
	}

	return changes, nil
}
