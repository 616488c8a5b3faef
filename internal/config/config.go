package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/livinlefevreloca/lectio/internal/connectivity"
	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/logging"
	"github.com/livinlefevreloca/lectio/internal/remote"
	"github.com/livinlefevreloca/lectio/internal/scheduler"
	"github.com/livinlefevreloca/lectio/internal/telemetry"
)

// Config represents the application configuration
type Config struct {
	Database     db.Config             `toml:"database"`
	Scheduler    scheduler.Config      `toml:"scheduler"`
	Cache        scheduler.CacheWindow `toml:"cache"`
	Remote       remote.Config         `toml:"remote"`
	Connectivity connectivity.Config   `toml:"connectivity"`
	HTTP         HTTPConfig            `toml:"http"`
	Metrics      telemetry.Config      `toml:"metrics"`
	Logging      logging.Config        `toml:"logging"`
}

// HTTPConfig holds HTTP API server settings
type HTTPConfig struct {
	Enabled         bool          `toml:"enabled"`
	Address         string        `toml:"address"`
	Port            int           `toml:"port"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// Addr returns the listen address of the API server
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:          "sqlite3",
			DSN:             "file:lectio.db?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			SkipMigrations:  false,
		},
		Scheduler:    scheduler.DefaultConfig(),
		Cache:        scheduler.DefaultCacheWindow(),
		Remote:       remote.DefaultConfig(),
		Connectivity: connectivity.DefaultConfig(),
		HTTP: HTTPConfig{
			Enabled:         true,
			Address:         "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: telemetry.DefaultConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	// If no config file specified, return defaults
	if configPath == "" {
		return DefaultConfig(), nil
	}

	return LoadFromFile(configPath)
}

// SchedulerConfig returns the scheduler settings with the cache window applied
func (c *Config) SchedulerConfig() scheduler.Config {
	cfg := c.Scheduler
	cfg.Window = c.Cache
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver must be specified")
	}
	if c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s (must be sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN must be specified")
	}

	if err := scheduler.ValidateConfig(c.SchedulerConfig()); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := remote.ValidateConfig(c.Remote); err != nil {
		return fmt.Errorf("remote: %w", err)
	}

	if err := connectivity.ValidateConfig(c.Connectivity); err != nil {
		return fmt.Errorf("connectivity: %w", err)
	}

	// HTTP validation
	if c.HTTP.Enabled {
		if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
			return fmt.Errorf("HTTP port must be between 1 and 65535")
		}
		if c.HTTP.ShutdownTimeout <= 0 {
			return fmt.Errorf("HTTP shutdown_timeout must be positive, got %v", c.HTTP.ShutdownTimeout)
		}
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return fmt.Errorf("metrics address must be specified")
		}
		if c.Metrics.Path == "" || c.Metrics.Path[0] != '/' {
			return fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path)
		}
	}

	if err := logging.ValidateConfig(c.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}
