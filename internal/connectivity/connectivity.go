// Package connectivity tracks whether the remote store is reachable.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/livinlefevreloca/lectio/internal/broadcast"
)

// Status is the process-wide reachability state
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Config controls the reachability poll
type Config struct {
	Interval     time.Duration `toml:"interval"`
	ProbeAddress string        `toml:"probe_address"`
	Timeout      time.Duration `toml:"timeout"`
}

// DefaultConfig returns the default poll settings. ProbeAddress is left
// empty so it can be derived from the remote base URL.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// ValidateConfig checks poll settings
func ValidateConfig(cfg Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("Interval must be positive, got %v", cfg.Interval)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", cfg.Timeout)
	}
	return nil
}

// Prober reports whether the remote can currently be reached
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// DialProber checks reachability by opening a TCP connection
type DialProber struct {
	Address string
	Timeout time.Duration
}

func (p DialProber) Probe(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Monitor polls a Prober and publishes status transitions
type Monitor struct {
	config Config
	prober Prober
	logger *slog.Logger
	hub    *broadcast.Hub[Status]

	mu      sync.RWMutex
	current Status

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor in the unknown state
func NewMonitor(config Config, prober Prober, logger *slog.Logger) (*Monitor, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid connectivity config: %w", err)
	}
	if prober == nil {
		if config.ProbeAddress == "" {
			return nil, fmt.Errorf("invalid connectivity config: ProbeAddress is required without a prober")
		}
		prober = DialProber{Address: config.ProbeAddress, Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		config:  config,
		prober:  prober,
		logger:  logger,
		hub:     broadcast.NewHub[Status](0, logger),
		current: StatusUnknown,
	}, nil
}

// Current returns the last observed status
func (m *Monitor) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe returns a stream of status transitions
func (m *Monitor) Subscribe(buffer int) *broadcast.Subscription[Status] {
	return m.hub.Subscribe(buffer)
}

// Unsubscribe stops delivery to sub
func (m *Monitor) Unsubscribe(sub *broadcast.Subscription[Status]) {
	m.hub.Unsubscribe(sub)
}

// Check runs one probe and records the result
func (m *Monitor) Check(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	next := StatusOnline
	if err := m.prober.Probe(probeCtx); err != nil {
		if ctx.Err() != nil {
			// Shutting down, not a reachability signal
			return m.Current()
		}
		m.logger.Debug("connectivity probe failed", "error", err)
		next = StatusOffline
	}

	m.set(next)
	return next
}

// set records status and publishes it if it changed
func (m *Monitor) set(status Status) {
	m.mu.Lock()
	prev := m.current
	m.current = status
	m.mu.Unlock()

	if prev == status {
		return
	}

	m.logger.Info("connectivity changed", "from", prev, "to", status)
	if err := m.hub.Publish(status); err != nil {
		m.logger.Debug("connectivity transition not published", "error", err)
	}
}

// Start begins polling in the background. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return fmt.Errorf("connectivity monitor already running")
	}
	if m.hub.Closed() {
		return fmt.Errorf("connectivity monitor stopped")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(loopCtx, m.done)
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Stop ends polling and closes every subscription
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if m.running {
		m.cancel()
		<-m.done
		m.running = false
	}
	m.runMu.Unlock()

	m.hub.Close()
}
