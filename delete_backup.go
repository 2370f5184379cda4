package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/coldvault-io/coldvault/internal/config"
)

// newDeleteBackupCmd builds the "delete-backup" subcommand: for every
// metadata store entry, permanently destroy every object version stored
// under its hash, then the entry itself. Objects in the bucket with no
// metadata store entry are not touched. Irreversible, so it always
// confirms interactively unless --yes is given; without --yes, a stdin
// that isn't a terminal is refused.
func newDeleteBackupCmd() *cobra.Command {
	var (
		cli    config.CLIOverrides
		assume bool
	)

	cmd := &cobra.Command{
		Use:   "delete-backup",
		Short: "Permanently delete every object and metadata entry in this backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			cfg, err := config.Resolve(cli, config.ReadEnvOverrides(), config.Required{
				BucketName:    true,
				MetadataTable: true,
			})
			if err != nil {
				panic(err)
			}

			if !assume {
				if err := confirmDestructive(cfg.BucketName); err != nil {
					return err
				}
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

			trackers, err := metaStore.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("delete-backup: get_all: %w", err)
			}

			deleted := 0
			var errs error

			for _, tracker := range trackers {
				if err := objStore.PermanentlyDeleteAll(ctx, tracker.Hash); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("object purge %s: %w", tracker.Hash, err))
					continue
				}

				if err := metaStore.Delete(ctx, tracker.Hash); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("metadata delete %s: %w", tracker.Hash, err))
					continue
				}

				deleted++
			}

			cc.Logger.Info("delete-backup: complete", "hashes_deleted", deleted, "hashes_total", len(trackers))

			if errs != nil {
				return fmt.Errorf("delete-backup: %d of %d hashes had errors: %w", len(trackers)-deleted, len(trackers), errs)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&cli.BucketName, "bucket", "", "bucket to destroy")
	cmd.Flags().StringVar(&cli.MetadataTable, "metadata-table", "", "metadata store path")
	cmd.Flags().BoolVar(&assume, "yes", false, "skip the interactive confirmation prompt")

	return cmd
}

// confirmDestructive requires the operator to type "y" or "yes" at a
// real terminal before proceeding. A non-interactive stdin without
// --yes is refused outright rather than silently proceeding.
func confirmDestructive(bucket string) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("delete-backup: refusing to run non-interactively without --yes")
	}

	fmt.Fprintf(os.Stderr, "This will permanently delete every tracked object and metadata entry for bucket %q.\nType \"yes\" to continue: ", bucket)

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("delete-backup: reading confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	if answer != "y" && answer != "yes" {
		return fmt.Errorf("delete-backup: confirmation declined")
	}

	return nil
}
