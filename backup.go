package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault-io/coldvault/internal/clock"
	"github.com/coldvault-io/coldvault/internal/config"
	"github.com/coldvault-io/coldvault/internal/engine"
	"github.com/coldvault-io/coldvault/internal/scanner"
)

type backupFlags struct {
	cli     config.CLIOverrides
	minDays string
	repair  bool
}

// newBackupCmd builds the "backup" subcommand: scan, diff, plan,
// execute — the full reconciliation pipeline.
func newBackupCmd() *cobra.Command {
	f := &backupFlags{}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Scan the target directory and reconcile it against the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			f.cli.MinStorageDuration = f.minDays
			f.cli.DryRun = cc.DryRun
			f.cli.DryRunSet = cmd.Flags().Changed("dry-run")

			cfg, err := config.Resolve(f.cli, config.ReadEnvOverrides(), config.Required{
				TargetDir:     true,
				BucketName:    true,
				MetadataTable: true,
				CataloguePath: true,
			})
			if err != nil {
				panic(err)
			}

			cat, err := newCatalogue(ctx, cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer cat.Close()

			metaStore, err := newMetadataStore(cfg)
			if err != nil {
				return err
			}
			defer metaStore.Close()

			objStore, cleanup, err := newObjectStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if f.repair {
				fixed, err := engine.Repair(ctx, cat, metaStore, cc.Logger)
				if err != nil {
					return fmt.Errorf("backup: repair: %w", err)
				}

				cc.Logger.Info("backup: repair pass complete", "rows_fixed", fixed)
			}

			if empty, err := cat.GlacierEmpty(ctx); err != nil {
				return fmt.Errorf("backup: glacier_empty: %w", err)
			} else if empty {
				if err := engine.Bootstrap(ctx, cat, objStore, metaStore, clock.System{}, cc.Logger); err != nil {
					return fmt.Errorf("backup: bootstrap: %w", err)
				}
			}

			sc := scanner.New(cat, scanner.NewFilter(cfg.FilterPatterns), cc.Logger)
			if err := sc.Scan(ctx, cfg.TargetDir); err != nil {
				return fmt.Errorf("backup: scan: %w", err)
			}

			changes, err := engine.Diff(ctx, cat)
			if err != nil {
				return fmt.Errorf("backup: diff: %w", err)
			}

			plan, err := engine.BuildPlan(ctx, metaStore, changes)
			if err != nil {
				return fmt.Errorf("backup: plan: %w", err)
			}

			summary := engine.Execute(ctx, plan, objStore, metaStore, cat, clock.System{}, engine.Options{
				MinStorageDuration: cfg.MinStorageDuration,
				DryRun:             cfg.DryRun,
			}, cc.Logger)

			if err := cat.TruncateLocal(ctx); err != nil {
				return fmt.Errorf("backup: truncate local: %w", err)
			}

			logSummary(cc, summary)

			if err := cc.Notifier.Push(ctx, "coldvault backup", summaryMessage(cfg.TargetDir, summary)); err != nil {
				cc.Logger.Warn("backup: notify push failed", "error", err)
			}

			if summary.Failures > 0 {
				return fmt.Errorf("backup: %d of %d touched hashes failed", summary.Failures, summary.Failures+summary.Successes)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&f.cli.TargetDir, "target-dir", "", "directory to back up")
	cmd.Flags().StringVar(&f.cli.BucketName, "bucket", "", "destination object store bucket")
	cmd.Flags().StringVar(&f.cli.MetadataTable, "metadata-table", "", "metadata store path")
	cmd.Flags().StringVar(&f.cli.CataloguePath, "catalogue", "", "local catalogue database path")
	cmd.Flags().StringVar(&f.minDays, "min-storage-duration", "", "minimum retention window in days before a tombstone may be reclaimed")
	cmd.Flags().StringVar(&f.cli.Filter, "filter", "", "exclusion regex or delimited list")
	cmd.Flags().StringVar(&f.cli.FilterDelimiter, "filter-delimiter", "", "delimiter splitting --filter into multiple patterns")
	cmd.Flags().BoolVar(&f.repair, "repair", false, "find and drop orphaned catalogue rows before reconciling")

	return cmd
}

func summaryMessage(targetDir string, s engine.RunSummary) string {
	mode := "live"
	if s.DryRun {
		mode = "dry-run"
	}

	return fmt.Sprintf("[%s] %s backup of %s: %d uploaded, %d reuploaded, %d undeleted, %d deleted, %d failed (%s)",
		s.RunID, mode, targetDir, s.Uploaded, s.Reuploaded, s.Undeleted, s.Deleted, s.Failures, s.Duration())
}
