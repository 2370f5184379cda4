// Package config resolves the subcommand configuration from the two
// layers spec.md defines: CLI flags (highest precedence) and
// environment variables. There is no config-file layer — every flag has
// a direct environment fallback, upper-snake-cased.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// defaultMinStorageDuration is the retention window used when neither
// --min-storage-duration nor MIN_STORAGE_DURATION is set.
const defaultMinStorageDuration = 180 * 24 * time.Hour

// Notify holds ntfy push destination and credentials.
type Notify struct {
	URL      string
	Topic    string
	Username string
	Password string
}

// Config is the fully resolved configuration for one command invocation.
type Config struct {
	TargetDir          string
	BucketName         string
	MetadataTable      string // env var name kept as DYNAMO_TABLE, per SPEC_FULL.md §6
	CataloguePath      string
	MinStorageDuration time.Duration
	FilterPatterns     []string

	DryRun bool
	Notify Notify
}

// normalizeTargetDir strips a trailing slash and replaces a leading
// "./" with the process working directory, per spec.md §6.
func normalizeTargetDir(dir string) (string, error) {
	dir = strings.TrimSuffix(dir, "/")

	if strings.HasPrefix(dir, "./") {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}

		dir = filepath.Join(wd, strings.TrimPrefix(dir, "./"))
	}

	return dir, nil
}

// splitFilter turns the FILTER value into a pattern list, honoring an
// optional delimiter (scenario 3 in spec.md §8).
func splitFilter(filter, delimiter string) []string {
	if filter == "" {
		return nil
	}

	if delimiter == "" {
		return []string{filter}
	}

	return strings.Split(filter, delimiter)
}
