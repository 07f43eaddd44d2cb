package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perchmsg/relaycore/internal/store"
)

// InitDBOptions holds flags for the init-db command.
type InitDBOptions struct {
	*RootOptions
	Database string
}

// NewInitDBCommand creates the init-db command.
func NewInitDBCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitDBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create or migrate the event store",
		Long: `Create the SQLite event store and apply the schema.

Every schema statement is idempotent, so init-db is safe to run against an
existing store; it applies any missing tables or indexes and leaves stored
events untouched.

Example:
  relayd init-db --db ./relay.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDB(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runInitDB(opts *InitDBOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize event store", err)
	}
	if err := st.Close(); err != nil {
		return WrapExitError(ExitFailure, "failed to close event store", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(fmt.Sprintf("event store ready: %s", opts.Database))
}
