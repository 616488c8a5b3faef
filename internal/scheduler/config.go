package scheduler

import (
	"fmt"
	"time"
)

// Config defines the trigger policy of the sync scheduler
type Config struct {
	// Cron expression for the primary daily sync, evaluated in local time
	PrimarySchedule string `toml:"primary_schedule"`

	// Cron expression for the backup daily sync
	BackupSchedule string `toml:"backup_schedule"`

	// Delay before the single retry of a failed primary sync
	RetryDelay time.Duration `toml:"retry_delay"`

	// Cadence of the missed-sync sweep
	FallbackInterval time.Duration `toml:"fallback_interval"`

	// The sweep only acts at or after this local hour
	FallbackCutoffHour int `toml:"fallback_cutoff_hour"`

	// A success within this window satisfies the backup, sweep and catch-up guards
	GuardWindow time.Duration `toml:"guard_window"`

	// Days after the invocation date to reconcile as read-ahead
	ReadAheadDays int `toml:"read_ahead_days"`

	// Main loop iteration interval
	LoopInterval time.Duration `toml:"loop_interval"`

	// Minimum spacing between connectivity catch-up syncs
	CatchUpMinInterval time.Duration `toml:"catch_up_min_interval"`

	// Timeout for delivering an event to a slow subscriber
	EventSendTimeout time.Duration `toml:"event_send_timeout"`

	Background BackgroundConfig `toml:"background"`

	// Cache retention around today, filled from the [cache] section
	Window CacheWindow `toml:"-"`
}

// BackgroundConfig controls the host background execution slot
type BackgroundConfig struct {
	// Enabled selects the file slot; otherwise the engine is foreground only
	Enabled bool `toml:"enabled"`

	// Directory watched for trigger files
	Dir string `toml:"dir"`

	// Local hours [WindowStartHour, WindowEndHour) in which a slot always syncs
	WindowStartHour int `toml:"window_start_hour"`
	WindowEndHour   int `toml:"window_end_hour"`

	// Outside the window a slot syncs only if the last success is older than this
	StaleAfter time.Duration `toml:"stale_after"`

	// Minimum spacing between slot runs
	MinInterval time.Duration `toml:"min_interval"`

	// Host-imposed execution deadline for one slot run
	Deadline time.Duration `toml:"deadline"`
}

// CacheWindow is the number of days kept either side of today
type CacheWindow struct {
	Before int `toml:"window_before"`
	After  int `toml:"window_after"`
}

// DefaultCacheWindow keeps ninety days either side of today
func DefaultCacheWindow() CacheWindow {
	return CacheWindow{Before: 90, After: 90}
}

// DefaultConfig returns the default trigger policy
func DefaultConfig() Config {
	return Config{
		PrimarySchedule:    "0 2 * * *",
		BackupSchedule:     "0 3 * * *",
		RetryDelay:         30 * time.Minute,
		FallbackInterval:   1 * time.Hour,
		FallbackCutoffHour: 6,
		GuardWindow:        24 * time.Hour,
		ReadAheadDays:      1,
		LoopInterval:       1 * time.Second,
		CatchUpMinInterval: 15 * time.Minute,
		EventSendTimeout:   100 * time.Millisecond,
		Background: BackgroundConfig{
			Enabled:         false,
			Dir:             "background",
			WindowStartHour: 1,
			WindowEndHour:   5,
			StaleAfter:      24 * time.Hour,
			MinInterval:     15 * time.Minute,
			Deadline:        25 * time.Second,
		},
		Window: DefaultCacheWindow(),
	}
}

// ValidateConfig validates scheduler configuration and returns error if invalid.
// Cron expressions are parsed during Initialize.
func ValidateConfig(config Config) error {
	if config.PrimarySchedule == "" {
		return fmt.Errorf("PrimarySchedule is required")
	}

	if config.BackupSchedule == "" {
		return fmt.Errorf("BackupSchedule is required")
	}

	if config.RetryDelay <= 0 {
		return fmt.Errorf("RetryDelay must be positive, got %v", config.RetryDelay)
	}

	if config.FallbackInterval <= 0 {
		return fmt.Errorf("FallbackInterval must be positive, got %v", config.FallbackInterval)
	}

	if config.FallbackCutoffHour < 0 || config.FallbackCutoffHour > 23 {
		return fmt.Errorf("FallbackCutoffHour must be in [0, 23], got %d", config.FallbackCutoffHour)
	}

	if config.GuardWindow <= 0 {
		return fmt.Errorf("GuardWindow must be positive, got %v", config.GuardWindow)
	}

	if config.ReadAheadDays < 0 {
		return fmt.Errorf("ReadAheadDays must not be negative, got %d", config.ReadAheadDays)
	}

	if config.LoopInterval <= 0 {
		return fmt.Errorf("LoopInterval must be positive, got %v", config.LoopInterval)
	}

	if config.CatchUpMinInterval <= 0 {
		return fmt.Errorf("CatchUpMinInterval must be positive, got %v", config.CatchUpMinInterval)
	}

	if config.EventSendTimeout <= 0 {
		return fmt.Errorf("EventSendTimeout must be positive, got %v", config.EventSendTimeout)
	}

	if err := validateBackgroundConfig(config.Background); err != nil {
		return err
	}

	if config.Window.Before < 0 || config.Window.After < 0 {
		return fmt.Errorf("cache window must not be negative, got before=%d after=%d",
			config.Window.Before, config.Window.After)
	}

	return nil
}

func validateBackgroundConfig(config BackgroundConfig) error {
	if config.Enabled && config.Dir == "" {
		return fmt.Errorf("Background.Dir is required when the background slot is enabled")
	}

	if config.WindowStartHour < 0 || config.WindowStartHour > 23 {
		return fmt.Errorf("Background.WindowStartHour must be in [0, 23], got %d", config.WindowStartHour)
	}

	if config.WindowEndHour < 0 || config.WindowEndHour > 24 {
		return fmt.Errorf("Background.WindowEndHour must be in [0, 24], got %d", config.WindowEndHour)
	}

	if config.WindowStartHour >= config.WindowEndHour {
		return fmt.Errorf("Background.WindowStartHour (%d) must be less than WindowEndHour (%d)",
			config.WindowStartHour, config.WindowEndHour)
	}

	if config.StaleAfter <= 0 {
		return fmt.Errorf("Background.StaleAfter must be positive, got %v", config.StaleAfter)
	}

	if config.MinInterval < 0 {
		return fmt.Errorf("Background.MinInterval must not be negative, got %v", config.MinInterval)
	}

	if config.Deadline <= 0 {
		return fmt.Errorf("Background.Deadline must be positive, got %v", config.Deadline)
	}

	return nil
}
