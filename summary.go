package main

import (
	"github.com/dustin/go-humanize"

	"github.com/coldvault-io/coldvault/internal/engine"
)

// logSummary writes one human-readable log line carrying every
// RunSummary counter, formatting the byte total the way an operator watching --debug output
// would expect rather than as a raw integer.
func logSummary(cc *CLIContext, s engine.RunSummary) {
	cc.Logger.Info("backup: run complete",
		"run_id", s.RunID,
		"dry_run", s.DryRun,
		"uploaded", s.Uploaded,
		"reuploaded", s.Reuploaded,
		"undeleted", s.Undeleted,
		"deleted", s.Deleted,
		"successes", s.Successes,
		"failures", s.Failures,
		"bytes_uploaded", humanize.Bytes(uint64(s.BytesUploaded)),
		"duration", s.Duration(),
	)
}
