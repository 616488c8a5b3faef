package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/lectio/internal/api"
	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/engine"
	"github.com/livinlefevreloca/lectio/internal/scheduler"
)

const statusRecentJobs = 10

// statusOutput is printed by the status command
type statusOutput struct {
	Scheduler   scheduler.Status      `json:"scheduler"`
	Cache       db.CacheStats         `json:"cache"`
	Performance db.PerformanceMetrics `json:"performance"`
	RecentJobs  []db.SyncJob          `json:"recent_jobs"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache size, sync performance and recent sync jobs",
		Long: `Print a JSON report built from the local cache: cache statistics, sync
performance over the default window and the most recent ledger rows. The
scheduler is not started, so its section describes an idle engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, false, func(ctx context.Context, e *engine.Engine) error {
				out := statusOutput{Scheduler: e.Scheduler.Status()}

				var err error
				if out.Cache, err = e.Scheduler.CacheStats(ctx); err != nil {
					return err
				}
				if out.Performance, err = e.Scheduler.PerformanceMetrics(ctx, 0); err != nil {
					return err
				}
				if out.RecentJobs, err = e.Scheduler.RecentSyncJobs(ctx, statusRecentJobs); err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent sync ledger rows, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			if limit <= 0 || limit > api.MaxJobsLimit {
				return fmt.Errorf("--limit must be between 1 and %d, got %d", api.MaxJobsLimit, limit)
			}

			return withEngine(cmd, false, func(ctx context.Context, e *engine.Engine) error {
				jobs, err := e.Scheduler.RecentSyncJobs(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, api.JobsResponse{Jobs: jobs})
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of rows to list")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show sync performance over a trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := cmd.Flags().GetDuration("window")
			if err != nil {
				return err
			}
			if window < 0 {
				return fmt.Errorf("--window must not be negative, got %v", window)
			}

			return withEngine(cmd, false, func(ctx context.Context, e *engine.Engine) error {
				metrics, err := e.Scheduler.PerformanceMetrics(ctx, window)
				if err != nil {
					return err
				}
				return printJSON(cmd, metrics)
			})
		},
	}
	cmd.Flags().Duration("window", scheduler.DefaultPerformanceWindow, "Trailing window to aggregate, e.g. 24h")
	return cmd
}
