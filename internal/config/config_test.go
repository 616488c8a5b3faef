package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Database defaults
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected driver sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Database.MigrationsDir != "" {
		t.Errorf("expected embedded migrations by default, got %s", cfg.Database.MigrationsDir)
	}

	// Scheduler defaults
	if cfg.Scheduler.PrimarySchedule != "0 2 * * *" {
		t.Errorf("expected primary schedule 0 2 * * *, got %s", cfg.Scheduler.PrimarySchedule)
	}
	if cfg.Scheduler.RetryDelay != 30*time.Minute {
		t.Errorf("expected retry_delay 30m, got %v", cfg.Scheduler.RetryDelay)
	}

	// Cache defaults
	if cfg.Cache.Before != 90 || cfg.Cache.After != 90 {
		t.Errorf("expected 90/90 cache window, got %+v", cfg.Cache)
	}

	// HTTP defaults
	if !cfg.HTTP.Enabled {
		t.Error("expected HTTP enabled by default")
	}
	if cfg.HTTP.Addr() != "127.0.0.1:8080" {
		t.Errorf("expected HTTP address 127.0.0.1:8080, got %s", cfg.HTTP.Addr())
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[database]
dsn = "/var/lib/lectio/cache.db"

[scheduler]
primary_schedule = "30 1 * * *"
retry_delay = "10m"
fallback_cutoff_hour = 7

[scheduler.background]
enabled = true
dir = "/run/lectio"
deadline = "20s"

[cache]
window_before = 30
window_after = 60

[remote]
base_url = "https://liturgy.example.org/api"
max_attempts = 5

[connectivity]
interval = "1m"

[http]
enabled = false
port = 9000

[logging]
level = "debug"
format = "text"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Check overridden values
	if cfg.Database.DSN != "/var/lib/lectio/cache.db" {
		t.Errorf("expected overridden DSN, got %s", cfg.Database.DSN)
	}
	if cfg.Scheduler.PrimarySchedule != "30 1 * * *" {
		t.Errorf("expected primary schedule 30 1 * * *, got %s", cfg.Scheduler.PrimarySchedule)
	}
	if cfg.Scheduler.RetryDelay != 10*time.Minute {
		t.Errorf("expected retry_delay 10m, got %v", cfg.Scheduler.RetryDelay)
	}
	if cfg.Scheduler.FallbackCutoffHour != 7 {
		t.Errorf("expected fallback_cutoff_hour 7, got %d", cfg.Scheduler.FallbackCutoffHour)
	}
	if !cfg.Scheduler.Background.Enabled || cfg.Scheduler.Background.Dir != "/run/lectio" {
		t.Errorf("expected background slot enabled in /run/lectio, got %+v", cfg.Scheduler.Background)
	}
	if cfg.Scheduler.Background.Deadline != 20*time.Second {
		t.Errorf("expected deadline 20s, got %v", cfg.Scheduler.Background.Deadline)
	}
	if cfg.Remote.BaseURL != "https://liturgy.example.org/api" || cfg.Remote.MaxAttempts != 5 {
		t.Errorf("unexpected remote config %+v", cfg.Remote)
	}
	if cfg.Connectivity.Interval != time.Minute {
		t.Errorf("expected connectivity interval 1m, got %v", cfg.Connectivity.Interval)
	}
	if cfg.HTTP.Enabled {
		t.Error("expected HTTP disabled")
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected HTTP port 9000, got %d", cfg.HTTP.Port)
	}

	// The cache section feeds the scheduler's trim window
	window := cfg.SchedulerConfig().Window
	if window.Before != 30 || window.After != 60 {
		t.Errorf("expected 30/60 window, got %+v", window)
	}

	// Check default values still present
	if cfg.Scheduler.BackupSchedule != "0 3 * * *" {
		t.Errorf("expected default backup schedule, got %s", cfg.Scheduler.BackupSchedule)
	}
	if cfg.Scheduler.Background.StaleAfter != 24*time.Hour {
		t.Errorf("expected default stale_after 24h, got %v", cfg.Scheduler.Background.StaleAfter)
	}
	if cfg.Remote.Timeout != 15*time.Second {
		t.Errorf("expected default remote timeout 15s, got %v", cfg.Remote.Timeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to be valid, got %v", err)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[scheduler\nretry_delay = "), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error for empty config path, got %v", err)
	}

	// Should return defaults
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver, got %s", cfg.Database.Driver)
	}
}

func TestValidate_Success(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty driver", func(c *Config) { c.Database.Driver = "" }},
		{"unsupported driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"empty DSN", func(c *Config) { c.Database.DSN = "" }},
		{"zero retry delay", func(c *Config) { c.Scheduler.RetryDelay = 0 }},
		{"negative cache window", func(c *Config) { c.Cache.After = -1 }},
		{"empty remote URL", func(c *Config) { c.Remote.BaseURL = "" }},
		{"zero connectivity interval", func(c *Config) { c.Connectivity.Interval = 0 }},
		{"invalid HTTP port", func(c *Config) { c.HTTP.Port = 99999 }},
		{"metrics path without slash", func(c *Config) { c.Metrics.Path = "metrics" }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "invalid" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.Enabled = false
	cfg.HTTP.Port = 0
	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected disabled sections to skip validation, got %v", err)
	}
}
