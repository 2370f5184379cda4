package config

import (
	"fmt"
	"strconv"
	"time"
)

// CLIOverrides holds the flag values a command parsed, taking
// precedence over every environment variable.
type CLIOverrides struct {
	TargetDir          string
	BucketName         string
	MetadataTable      string
	CataloguePath      string
	MinStorageDuration string
	Filter             string
	FilterDelimiter    string
	DryRun             bool
	DryRunSet          bool
	NtfyURL            string
	NtfyTopic          string
	NtfyUsername       string
	NtfyPassword       string
}

// MissingFieldError names a required flag/environment variable that
// neither layer supplied. Per the error taxonomy (§7 point 4), the
// caller is expected to panic with this error at startup.
type MissingFieldError struct {
	Flag string
	Env  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required configuration: --%s (or %s)", e.Flag, e.Env)
}

// Resolve applies the two-layer override chain (env, then CLI) and
// normalizes the result. required controls which fields must be
// non-empty for the calling subcommand; Resolve returns a
// *MissingFieldError when one is absent so the caller can panic with an
// actionable message naming the missing variable.
func Resolve(cli CLIOverrides, env EnvOverrides, required Required) (*Config, error) {
	cfg := &Config{
		TargetDir:     firstNonEmpty(cli.TargetDir, env.TargetDir),
		BucketName:    firstNonEmpty(cli.BucketName, env.BucketName),
		MetadataTable: firstNonEmpty(cli.MetadataTable, env.MetadataTable),
		CataloguePath: firstNonEmpty(cli.CataloguePath, env.CataloguePath),
	}

	if required.TargetDir && cfg.TargetDir == "" {
		return nil, &MissingFieldError{Flag: "target-dir", Env: "TARGET_DIR"}
	}

	if required.BucketName && cfg.BucketName == "" {
		return nil, &MissingFieldError{Flag: "bucket", Env: "BUCKET_NAME"}
	}

	if required.MetadataTable && cfg.MetadataTable == "" {
		return nil, &MissingFieldError{Flag: "metadata-table", Env: "DYNAMO_TABLE"}
	}

	if required.CataloguePath && cfg.CataloguePath == "" {
		return nil, &MissingFieldError{Flag: "catalogue", Env: "CATALOGUE_PATH"}
	}

	if cfg.TargetDir != "" {
		normalized, err := normalizeTargetDir(cfg.TargetDir)
		if err != nil {
			return nil, fmt.Errorf("config: normalizing target_dir: %w", err)
		}

		cfg.TargetDir = normalized
	}

	minDur, err := resolveMinStorageDuration(cli.MinStorageDuration, env.MinStorageDuration)
	if err != nil {
		return nil, err
	}

	cfg.MinStorageDuration = minDur

	filter := firstNonEmpty(cli.Filter, env.Filter)
	delimiter := firstNonEmpty(cli.FilterDelimiter, env.FilterDelimiter)
	cfg.FilterPatterns = splitFilter(filter, delimiter)

	cfg.DryRun = cli.DryRunSet && cli.DryRun
	if !cli.DryRunSet && env.DryRun != "" {
		cfg.DryRun, _ = strconv.ParseBool(env.DryRun)
	}

	cfg.Notify = Notify{
		URL:      firstNonEmpty(cli.NtfyURL, env.NtfyURL),
		Topic:    firstNonEmpty(cli.NtfyTopic, env.NtfyTopic),
		Username: firstNonEmpty(cli.NtfyUsername, env.NtfyUsername),
		Password: firstNonEmpty(cli.NtfyPassword, env.NtfyPassword),
	}

	return cfg, nil
}

// Required names which fields a given subcommand needs present,
// matching the per-subcommand "Required inputs" column in spec.md §6.
type Required struct {
	TargetDir     bool
	BucketName    bool
	MetadataTable bool
	CataloguePath bool
}

func resolveMinStorageDuration(cliVal, envVal string) (time.Duration, error) {
	raw := firstNonEmpty(cliVal, envVal)
	if raw == "" {
		return defaultMinStorageDuration, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: min_storage_duration %q is not an integer number of days: %w", raw, err)
	}

	return time.Duration(days) * 24 * time.Hour, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
