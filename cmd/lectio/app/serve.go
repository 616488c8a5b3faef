package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/lectio/internal/engine"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine until interrupted",
		Long: `Run the sync engine: activate the scheduler, watch connectivity, and serve
the local HTTP API and metrics endpoints when enabled in the configuration.
The engine shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, logCloser, err := newLogger(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger.Info("starting lectio sync engine")
	logger.Info("database configuration",
		"driver", cfg.Database.Driver,
		"dsn", cfg.Database.DSN,
		"migrations_dir", cfg.Database.MigrationsDir)
	logger.Info("remote configuration", "base_url", cfg.Remote.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		return err
	}

	if err := e.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		_ = e.Close(context.Background())
		return err
	}
	if err := e.Serve(); err != nil {
		logger.Error("failed to start servers", "error", err)
		_ = e.Close(context.Background())
		return err
	}

	logger.Info("lectio is running")
	<-ctx.Done()
	stop()

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := e.Close(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
