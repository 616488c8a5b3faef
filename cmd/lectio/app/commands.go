// Package app provides the lectio command tree.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/lectio/internal/config"
	"github.com/livinlefevreloca/lectio/internal/engine"
	"github.com/livinlefevreloca/lectio/internal/logging"
)

const closeTimeout = 30 * time.Second

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "lectio",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Offline-first liturgical content sync engine",
		Long: `lectio keeps a local cache of liturgical days and readings in step with a
remote store. It syncs on a daily schedule with backup, retry and fallback
triggers, serves the cache over a local HTTP API, and reports every sync in a
ledger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("config", "", "Path to configuration file (TOML)")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newJobsCmd(),
		newStatsCmd(),
		newBackgroundRunCmd(),
		newMigrateCmd(),
	)
	return root
}

// loadConfig reads and validates the file named by --config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the configured logger. Without a log file, one-shot
// commands log to stderr so stdout carries only their JSON output.
func newLogger(cmd *cobra.Command, cfg *config.Config, toStdout bool) (*slog.Logger, io.Closer, error) {
	if cfg.Logging.File != "" || toStdout {
		return logging.New(cfg.Logging)
	}
	return logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr()), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// withEngine loads configuration, builds the engine, optionally starts it,
// runs fn and closes everything
func withEngine(cmd *cobra.Command, start bool, fn func(ctx context.Context, e *engine.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cmd, cfg, false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := engine.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := e.Close(closeCtx); err != nil {
			logger.Warn("engine did not close cleanly", "error", err)
		}
	}()

	if start {
		if err := e.Start(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, e)
}

// printJSON writes v as indented JSON to the command's output
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
