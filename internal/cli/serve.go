package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perchmsg/relaycore/internal/config"
	"github.com/perchmsg/relaycore/internal/ingest"
	"github.com/perchmsg/relaycore/internal/query"
	"github.com/perchmsg/relaycore/internal/retention"
	"github.com/perchmsg/relaycore/internal/server"
	"github.com/perchmsg/relaycore/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Listen   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay",
		Long: `Start the relay HTTP server.

The server opens the SQLite event store (creating it if it doesn't exist),
starts the background retention sweeper, and serves the ingestion, query,
and admin endpoints until interrupted.

Configuration is read from RELAY_* environment variables; the --db and
--listen flags override the configured values.

Example:
  relayd serve --db ./relay.db
  relayd serve --db /var/lib/relay/relay.db --listen :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides RELAY_DB_PATH)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides RELAY_LISTEN_ADDR)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if opts.Listen != "" {
		cfg.ListenAddr = opts.Listen
	}

	logger.Info("opening event store", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open event store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing event store", "error", closeErr)
		}
	}()

	pipeline := ingest.New(st, logger, cfg.DedupWindow)
	queries := query.New(st, logger)
	sweeper := retention.New(st, retention.Config{
		MaxStoreBytes:   cfg.MaxStoreBytes,
		MinRetentionAge: cfg.MinRetentionAge,
		ProtectedKinds:  cfg.ProtectedKinds,
		Interval:        cfg.PruneInterval,
	}, logger)
	srv := server.New(cfg, st, pipeline, queries, sweeper, logger)

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go sweeper.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	logger.Info("relay started", "addr", cfg.ListenAddr, "db", cfg.DBPath)
	fmt.Fprintln(cmd.OutOrStdout(), "Relay started. Press Ctrl-C to stop.")

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitFailure, "shutdown error", err)
		}
	}

	logger.Info("relay stopped gracefully")
	return nil
}
