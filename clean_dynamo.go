package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault-io/coldvault/internal/clock"
	"github.com/coldvault-io/coldvault/internal/config"
)

// newCleanDynamoCmd builds the "clean-dynamo" subcommand: sweep the
// metadata store for tombstones whose retention window has elapsed and
// whose path set is empty, deleting them. The name keeps the DynamoDB-era
// term as a deliberate carry-over even though the store backing it is
// now embedded.
func newCleanDynamoCmd() *cobra.Command {
	var cli config.CLIOverrides

	cmd := &cobra.Command{
		Use:   "clean-dynamo",
		Short: "Garbage-collect expired empty tombstones from the metadata store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			cfg, err := config.Resolve(cli, config.ReadEnvOverrides(), config.Required{
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

			trackers, err := metaStore.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("clean-dynamo: get_all: %w", err)
			}

			now := clock.System{}.Now()

			swept := 0

			for _, tracker := range trackers {
				if tracker.HasPaths() || tracker.Expiration.After(now) {
					continue
				}

				if err := metaStore.Update(ctx, tracker, now); err != nil {
					return fmt.Errorf("clean-dynamo: update %s: %w", tracker.Hash, err)
				}

				swept++
			}

			cc.Logger.Info("clean-dynamo: complete", "trackers_scanned", len(trackers), "trackers_swept", swept)

			return nil
		},
	}

	cmd.Flags().StringVar(&cli.MetadataTable, "metadata-table", "", "metadata store path")

	return cmd
}
