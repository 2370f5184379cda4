package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault-io/coldvault/internal/config"
	"github.com/coldvault-io/coldvault/internal/restore"
)

// newRestoreCmd builds the "restore" subcommand: download every tracked
// hash once and recreate it under target_dir at each path that
// references it.
func newRestoreCmd() *cobra.Command {
	var cli config.CLIOverrides

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Download every backed-up file into target_dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			cfg, err := config.Resolve(cli, config.ReadEnvOverrides(), config.Required{
				TargetDir:     true,
				BucketName:    true,
				MetadataTable: true,
			})
			if err != nil {
				panic(err)
			}

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

			summary, err := restore.Run(ctx, cfg.TargetDir, metaStore, objStore, restore.Options{}, cc.Logger)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}

			if err := cc.Notifier.Push(ctx, "coldvault restore", fmt.Sprintf(
				"restore complete: %d hashes, %d paths, %d errors", summary.Hashes, summary.Paths, summary.Errors)); err != nil {
				cc.Logger.Warn("restore: notify push failed", "error", err)
			}

			if summary.Errors > 0 {
				return fmt.Errorf("restore: %d hashes failed to download", summary.Errors)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&cli.TargetDir, "target-dir", "", "directory to restore tracked paths into")
	cmd.Flags().StringVar(&cli.BucketName, "bucket", "", "source object store bucket")
	cmd.Flags().StringVar(&cli.MetadataTable, "metadata-table", "", "metadata store path")

	return cmd
}
