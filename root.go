package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/coldvault-io/coldvault/internal/notify"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagDryRun    bool
	flagDebug     bool
	flagQuiet     bool
	flagNtfyURL   string
	flagNtfyTopic string
	flagNtfyUser  string
	flagNtfyPass  string
)

// CLIContext bundles the ambient dependencies every subcommand shares:
// the resolved logger and the (possibly no-op) notifier. Subcommand-
// specific configuration (target dir, bucket, etc.) is resolved inside
// each command's RunE, since the required fields differ per subcommand.
type CLIContext struct {
	Logger   *slog.Logger
	Notifier *notify.Notifier
	DryRun   bool
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics. A panic here is
// always a programmer error: PersistentPreRunE guarantees the context
// is populated before any RunE runs.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with
// all subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "coldvault",
		Short:   "Content-addressed incremental backup",
		Long:    "Deduplicated, crash-safe incremental backups to a versioned object store.",
		Version: version,
		// Silence Cobra's default error/usage printing — commands handle it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			cc := &CLIContext{
				Logger: logger,
				DryRun: flagDryRun,
				Notifier: notify.New(notify.Config{
					URL:      flagNtfyURL,
					Topic:    flagNtfyTopic,
					Username: flagNtfyUser,
					Password: flagNtfyPass,
				}),
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "backup only: plan without object, metadata, or catalogue mutation; ignored by the other subcommands")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().StringVar(&flagNtfyURL, "ntfy-url", "", "ntfy server base URL")
	cmd.PersistentFlags().StringVar(&flagNtfyTopic, "ntfy-topic", "", "ntfy topic")
	cmd.PersistentFlags().StringVar(&flagNtfyUser, "ntfy-username", "", "ntfy basic auth username")
	cmd.PersistentFlags().StringVar(&flagNtfyPass, "ntfy-password", "", "ntfy basic auth password")

	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newCleanDynamoCmd())
	cmd.AddCommand(newClearDatabaseCmd())
	cmd.AddCommand(newDeleteBackupCmd())

	return cmd
}

// buildLogger creates an slog.Logger from the global flags. --debug and
// --quiet are mutually exclusive (enforced by Cobra); LOG_LEVEL from the
// environment provides the baseline when neither is set.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = parseLevel(envLevel)
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
