package config

import "os"

// EnvOverrides holds every environment variable spec.md §6 lists that
// feeds config.Resolve, mirroring each CLI flag upper-snake-cased.
// LOG_LEVEL is read directly by root.go's buildLogger (it configures
// the logger, not a resolved Config field), so it has no entry here.
type EnvOverrides struct {
	TargetDir          string
	BucketName         string
	MetadataTable      string
	CataloguePath      string
	MinStorageDuration string
	Filter             string
	FilterDelimiter    string
	DryRun             string
	NtfyURL            string
	NtfyTopic          string
	NtfyUsername       string
	NtfyPassword       string
}

// ReadEnvOverrides reads every recognised environment variable. Absent
// variables leave their field at the zero value, letting the resolver
// fall through to defaults.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		TargetDir:          os.Getenv("TARGET_DIR"),
		BucketName:         os.Getenv("BUCKET_NAME"),
		MetadataTable:      os.Getenv("DYNAMO_TABLE"),
		CataloguePath:      os.Getenv("CATALOGUE_PATH"),
		MinStorageDuration: os.Getenv("MIN_STORAGE_DURATION"),
		Filter:             os.Getenv("FILTER"),
		FilterDelimiter:    os.Getenv("FILTER_DELIMITER"),
		DryRun:             os.Getenv("DRY_RUN"),
		NtfyURL:            os.Getenv("NTFY_URL"),
		NtfyTopic:          os.Getenv("NTFY_TOPIC"),
		NtfyUsername:       os.Getenv("NTFY_USERNAME"),
		NtfyPassword:       os.Getenv("NTFY_PASSWORD"),
	}
}
