// Package telemetry provides OpenTelemetry metrics exported in Prometheus format.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config controls the metrics endpoint
type Config struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// DefaultConfig returns metrics enabled on :9090/metrics
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Address: ":9090",
		Path:    "/metrics",
	}
}

// Provider bundles a meter provider with its scrape handler
type Provider struct {
	MeterProvider metric.MeterProvider
	// Handler serves the Prometheus exposition format; nil when disabled
	Handler  http.Handler
	shutdown func(context.Context) error
}

// Shutdown flushes and releases the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// NewProvider creates a meter provider backed by a Prometheus exporter that
// writes to its own registry. Returns a no-op provider if metrics are disabled.
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled {
		logger.Info("metrics disabled, using no-op meter provider")
		return &Provider{MeterProvider: noop.NewMeterProvider()}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	logger.Info("metrics initialized", "address", cfg.Address, "path", cfg.Path)

	return &Provider{
		MeterProvider: mp,
		Handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		shutdown:      mp.Shutdown,
	}, nil
}
