package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/perchmsg/relaycore/internal/config"
	"github.com/perchmsg/relaycore/internal/retention"
	"github.com/perchmsg/relaycore/internal/store"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	Database string
	Force    bool
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Run one retention sweep",
		Long: `Run a single retention sweep against the event store and exit.

The sweep removes events older than the configured retention age when the
store exceeds its size ceiling, clears orphaned tag rows and stale content
hashes, and compacts the database. Protected kinds are never removed.

Retention settings come from RELAY_* environment variables. With --force the
sweep runs even when the store is below its size ceiling.

Example:
  relayd prune --db ./relay.db
  relayd prune --db ./relay.db --force`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "sweep even below the size ceiling")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPrune(opts *PruneOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open event store", err)
	}
	defer st.Close()

	maxBytes := cfg.MaxStoreBytes
	if opts.Force {
		maxBytes = 0
	}
	sweeper := retention.New(st, retention.Config{
		MaxStoreBytes:   maxBytes,
		MinRetentionAge: cfg.MinRetentionAge,
		DedupMaxAge:     cfg.DedupWindow,
		ProtectedKinds:  cfg.ProtectedKinds,
	}, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := sweeper.Prune(ctx); err != nil {
		return WrapExitError(ExitFailure, "retention sweep failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success("retention sweep complete")
}
