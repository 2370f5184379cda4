// Package scanner walks the target directory and populates the
// catalogue's "local" relation, applying a regex exclusion list.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/coldvault-io/coldvault/internal/catalogue"
)

// Filter tests a path against the configured exclusion regexes.
type Filter struct {
	excludes []*regexp.Regexp
}

// NewFilter compiles each pattern once. An invalid pattern is a
// configuration error (taxonomy point 4) and panics with the offending
// pattern named.
func NewFilter(patterns []string) Filter {
	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			panic(fmt.Sprintf("scanner: invalid filter regex %q: %v", p, err))
		}

		compiled = append(compiled, re)
	}

	return Filter{excludes: compiled}
}

// Excluded reports whether relPath matches any configured exclusion regex.
func (f Filter) Excluded(relPath string) bool {
	for _, re := range f.excludes {
		if re.MatchString(relPath) {
			return true
		}
	}

	return false
}

// Scanner walks a target directory and records every non-excluded
// regular file into the catalogue's local relation.
type Scanner struct {
	cat    *catalogue.Catalogue
	filter Filter
	logger *slog.Logger
}

// New builds a Scanner over cat, applying filter during the walk.
func New(cat *catalogue.Catalogue, filter Filter, logger *slog.Logger) *Scanner {
	return &Scanner{cat: cat, filter: filter, logger: logger}
}

// Scan recursively enumerates targetDir. The local relation is
// truncated first per LocalFile's lifetime (created at scan start,
// relation truncated at start and end of every run — the end-of-run
// truncate happens in the backup command once the execute stage is done).
func (s *Scanner) Scan(ctx context.Context, targetDir string) error {
	if err := s.cat.TruncateLocal(ctx); err != nil {
		return fmt.Errorf("scanner: truncate local: %w", err)
	}

	s.logger.Info("scanner: starting walk", "target_dir", targetDir)

	count := 0

	err := filepath.WalkDir(targetDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scanner: walk error", "path", path, "error", err)
			return nil //nolint:nilerr // filesystem I/O errors are skipped, not fatal (taxonomy #2)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(targetDir, path)
		if relErr != nil {
			s.logger.Warn("scanner: relative path error", "path", path, "error", relErr)
			return nil
		}

		if s.filter.Excluded(rel) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			s.logger.Warn("scanner: stat error", "path", path, "error", statErr)
			return nil
		}

		if err := s.cat.InsertLocal(ctx, path, info.ModTime()); err != nil {
			return fmt.Errorf("scanner: insert local %s: %w", path, err)
		}

		count++

		return nil
	})
	if err != nil {
		return fmt.Errorf("scanner: walk %s: %w", targetDir, err)
	}

	s.logger.Info("scanner: walk complete", "target_dir", targetDir, "files", count)

	return nil
}
