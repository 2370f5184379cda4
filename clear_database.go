package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault-io/coldvault/internal/config"
)

// newClearDatabaseCmd builds the "clear-database" subcommand: truncate
// the local glacier relation, forcing the next backup run to treat
// every tracked path as unseen until engine.Bootstrap (or a fresh diff
// against the metadata store) repopulates it.
func newClearDatabaseCmd() *cobra.Command {
	var cli config.CLIOverrides

	cmd := &cobra.Command{
		Use:   "clear-database",
		Short: "Truncate the local catalogue's glacier relation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			cfg, err := config.Resolve(cli, config.ReadEnvOverrides(), config.Required{
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

			if err := cat.TruncateGlacier(ctx); err != nil {
				return fmt.Errorf("clear-database: %w", err)
			}

			cc.Logger.Info("clear-database: glacier relation truncated")

			return nil
		},
	}

	cmd.Flags().StringVar(&cli.CataloguePath, "catalogue", "", "local catalogue database path")

	return cmd
}
