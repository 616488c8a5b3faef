package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/lectio/internal/engine"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/internal/scheduler"
	"github.com/livinlefevreloca/lectio/internal/syncer"
)

// syncOutput is printed by the sync command
type syncOutput struct {
	Date   string        `json:"date"`
	Result syncer.Result `json:"result"`
	Error  string        `json:"error,omitempty"`
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the cache with the remote store once",
		Long: `Run a manual sync for a date (default today) and its read-ahead days,
bypassing the schedule guards, and print the outcome as JSON. The run is
recorded in the sync ledger like any scheduled run.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
	cmd.Flags().String("date", "", "Target date (YYYY-MM-DD), default today")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	raw, err := cmd.Flags().GetString("date")
	if err != nil {
		return err
	}

	var date *time.Time
	if raw != "" {
		d, err := liturgy.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		date = &d
	}

	return withEngine(cmd, true, func(ctx context.Context, e *engine.Engine) error {
		res, syncErr := e.Scheduler.TriggerManualSync(ctx, date)

		out := syncOutput{Result: res}
		if date != nil {
			out.Date = liturgy.DateKey(*date)
		} else {
			out.Date = liturgy.DateKey(time.Now())
		}
		if syncErr != nil {
			out.Error = syncErr.Error()
		}
		if err := printJSON(cmd, out); err != nil {
			return err
		}
		if syncErr != nil {
			return fmt.Errorf("sync failed: %w", syncErr)
		}
		return nil
	})
}

func newBackgroundRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "background-run",
		Short: "Run the background slot handler once",
		Long: `Invoke the background slot handler as a host scheduler would, for example
from a systemd timer. It syncs when inside the configured window or when the
cache is stale, and always prints an acknowledged result and exits 0.`,
		Args: cobra.NoArgs,
		RunE: runBackground,
	}
}

func runBackground(cmd *cobra.Command, _ []string) error {
	var out scheduler.BackgroundResult
	err := withEngine(cmd, true, func(ctx context.Context, e *engine.Engine) error {
		out = e.Scheduler.RunBackgroundSlot(ctx)
		return nil
	})
	// The host expects an acknowledgement even when the engine cannot start
	if err != nil {
		out = scheduler.BackgroundResult{
			Acknowledged: true,
			Reason:       "engine_unavailable",
			Error:        err.Error(),
			CompletedAt:  time.Now(),
		}
	}
	return printJSON(cmd, out)
}
