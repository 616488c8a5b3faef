// Package engine assembles the sync engine from configuration and owns the
// lifecycle of its components.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/livinlefevreloca/lectio/internal/api"
	"github.com/livinlefevreloca/lectio/internal/config"
	"github.com/livinlefevreloca/lectio/internal/connectivity"
	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/db/migrations"
	"github.com/livinlefevreloca/lectio/internal/remote"
	"github.com/livinlefevreloca/lectio/internal/scheduler"
	"github.com/livinlefevreloca/lectio/internal/syncer"
	"github.com/livinlefevreloca/lectio/internal/telemetry"
	"github.com/livinlefevreloca/lectio/tools/migrator"
)

// Engine wires the cache, remote source, connectivity monitor, coordinator
// and scheduler together. It replaces any process-wide singleton: callers
// build one and pass it where it is needed.
type Engine struct {
	config *config.Config
	logger *slog.Logger

	DB          *db.DB
	Source      remote.Source
	Monitor     *connectivity.Monitor
	Coordinator *syncer.Coordinator
	Scheduler   *scheduler.Scheduler
	Telemetry   *telemetry.Provider

	servers []*http.Server
	addrs   map[string]string
	serveWg sync.WaitGroup

	// Parent of every request context; cancelled on Close to end event streams
	baseCtx    context.Context
	cancelBase context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Option overrides a collaborator, mainly for tests
type Option func(*options)

type options struct {
	source remote.Source
	prober connectivity.Prober
	clock  scheduler.Clock
}

// WithSource replaces the HTTP remote source
func WithSource(source remote.Source) Option {
	return func(o *options) { o.source = source }
}

// WithProber replaces the TCP reachability probe
func WithProber(prober connectivity.Prober) Option {
	return func(o *options) { o.prober = prober }
}

// WithClock overrides the scheduler and coordinator time source
func WithClock(clock scheduler.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// New opens the cache, applies migrations and builds every component.
// Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{config: cfg, logger: logger}
	e.baseCtx, e.cancelBase = context.WithCancel(context.Background())

	database, err := OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	e.DB = database

	fail := func(err error) (*Engine, error) {
		database.Close()
		return nil, err
	}

	e.Telemetry, err = telemetry.NewProvider(cfg.Metrics, logger)
	if err != nil {
		return fail(err)
	}
	metrics, err := telemetry.NewSyncMetrics(e.Telemetry.MeterProvider)
	if err != nil {
		return fail(fmt.Errorf("failed to create sync metrics: %w", err))
	}

	e.Source = o.source
	if e.Source == nil {
		source, err := remote.NewHTTPSource(cfg.Remote, nil, logger.With("component", "remote"))
		if err != nil {
			return fail(fmt.Errorf("failed to create remote source: %w", err))
		}
		e.Source = source
	}

	connCfg := cfg.Connectivity
	if connCfg.ProbeAddress == "" && o.prober == nil {
		addr, err := remote.ProbeAddress(cfg.Remote.BaseURL)
		if err != nil {
			return fail(fmt.Errorf("failed to derive probe address: %w", err))
		}
		connCfg.ProbeAddress = addr
	}
	e.Monitor, err = connectivity.NewMonitor(connCfg, o.prober, logger.With("component", "connectivity"))
	if err != nil {
		return fail(err)
	}

	var coordClock syncer.Clock
	if o.clock != nil {
		coordClock = o.clock
	}
	e.Coordinator = syncer.NewCoordinator(database, e.Source, coordClock, logger.With("component", "syncer"))
	e.Coordinator.SetMetrics(metrics)

	var slot scheduler.BackgroundSlot = scheduler.ForegroundOnly{}
	if cfg.Scheduler.Background.Enabled {
		slot = scheduler.NewFileSlot(cfg.Scheduler.Background.Dir, logger.With("component", "background"))
	}

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(logger.With("component", "scheduler")),
		scheduler.WithConnectivity(e.Monitor),
		scheduler.WithBackgroundSlot(slot),
		scheduler.WithMetrics(metrics),
	}
	if o.clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(o.clock))
	}
	e.Scheduler, err = scheduler.New(cfg.SchedulerConfig(), database, e.Coordinator, schedOpts...)
	if err != nil {
		return fail(fmt.Errorf("failed to create scheduler: %w", err))
	}

	return e, nil
}

// OpenDatabase opens the cache database and brings its schema up to date
// unless migrations are skipped
func OpenDatabase(ctx context.Context, cfg db.Config, logger *slog.Logger) (*db.DB, error) {
	logger.Info("connecting to database", "driver", cfg.Driver)
	database, err := db.OpenWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.SkipMigrations {
		logger.Info("skipping migrations", "reason", "configured to skip")
		return database, nil
	}

	if err := migrator.RunMigrations(ctx, database.DB, MigrationsFS(cfg), logger); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := migrator.GetCurrentVersion(database.DB)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	logger.Info("database schema ready", "version", version)

	return database, nil
}

// MigrationsFS returns the configured migrations directory, or the embedded
// migrations when none is set
func MigrationsFS(cfg db.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

// Start begins connectivity polling and activates the scheduler
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Monitor.Start(ctx); err != nil {
		return err
	}
	if err := e.Scheduler.Initialize(ctx); err != nil {
		e.Monitor.Stop()
		return err
	}
	return nil
}

// Handler returns the HTTP API handler
func (e *Engine) Handler() http.Handler {
	return api.NewServer(e.Scheduler, e.DB, api.WithLogger(e.logger.With("component", "api")))
}

// Serve starts the API and metrics listeners configured as enabled. Listen
// errors are returned immediately; serve errors are logged.
func (e *Engine) Serve() error {
	if e.config.HTTP.Enabled {
		if err := e.listen("api", e.config.HTTP.Addr(), e.Handler()); err != nil {
			return err
		}
	}

	if e.config.Metrics.Enabled && e.Telemetry.Handler != nil {
		mux := http.NewServeMux()
		mux.Handle(e.config.Metrics.Path, e.Telemetry.Handler)
		if err := e.listen("metrics", e.config.Metrics.Address, mux); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) listen(name, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for %s on %s: %w", name, addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return e.baseCtx },
	}
	e.servers = append(e.servers, srv)
	if e.addrs == nil {
		e.addrs = make(map[string]string)
	}
	e.addrs[name] = ln.Addr().String()

	e.serveWg.Add(1)
	go func() {
		defer e.serveWg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("server failed", "server", name, "error", err)
		}
	}()

	e.logger.Info("server listening", "server", name, "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address of a listener started by Serve ("api" or
// "metrics"), or "" if it is not running
func (e *Engine) Addr(name string) string {
	return e.addrs[name]
}

// Close shuts down the listeners, stops the scheduler and the monitor,
// flushes metrics and closes the database. It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		var errs []error

		e.cancelBase()
		shutdownCtx, cancel := context.WithTimeout(ctx, e.config.HTTP.ShutdownTimeout)
		for _, srv := range e.servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown: %w", err))
			}
		}
		cancel()
		e.serveWg.Wait()

		if err := e.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
		e.Monitor.Stop()

		if err := e.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		if err := e.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}

		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
