package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/livinlefevreloca/lectio/sync"

// SyncMetrics holds the instruments for reconciliation and trigger metrics
type SyncMetrics struct {
	reconcileDuration metric.Float64Histogram
	triggerDuration   metric.Float64Histogram
	readingsChanged   metric.Int64Counter
	triggerSkips      metric.Int64Counter
	inFlight          metric.Int64UpDownCounter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)
	buckets := metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120)

	reconcileDuration, err := meter.Float64Histogram(
		"lectio_reconcile_duration_seconds",
		metric.WithDescription("Duration of single-date reconciliation passes in seconds"),
		metric.WithUnit("s"),
		buckets,
	)
	if err != nil {
		return nil, err
	}

	triggerDuration, err := meter.Float64Histogram(
		"lectio_trigger_duration_seconds",
		metric.WithDescription("Duration of trigger invocations in seconds"),
		metric.WithUnit("s"),
		buckets,
	)
	if err != nil {
		return nil, err
	}

	readingsChanged, err := meter.Int64Counter(
		"lectio_readings_changed_total",
		metric.WithDescription("Readings created or updated by reconciliation"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	triggerSkips, err := meter.Int64Counter(
		"lectio_trigger_skips_total",
		metric.WithDescription("Trigger invocations skipped by a guard"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"lectio_reconcile_in_flight",
		metric.WithDescription("Dates currently being reconciled"),
		metric.WithUnit("{date}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		reconcileDuration: reconcileDuration,
		triggerDuration:   triggerDuration,
		readingsChanged:   readingsChanged,
		triggerSkips:      triggerSkips,
		inFlight:          inFlight,
	}, nil
}

// RecordReconcile records one reconciliation pass
func (m *SyncMetrics) RecordReconcile(ctx context.Context, created, updated int, duration time.Duration, success bool) {
	if m == nil {
		return
	}

	m.reconcileDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))

	if created > 0 {
		m.readingsChanged.Add(ctx, int64(created), metric.WithAttributes(attribute.String("change", "created")))
	}
	if updated > 0 {
		m.readingsChanged.Add(ctx, int64(updated), metric.WithAttributes(attribute.String("change", "updated")))
	}
}

// RecordTrigger records one trigger invocation that ran reconciliation
func (m *SyncMetrics) RecordTrigger(ctx context.Context, trigger string, duration time.Duration, success bool) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	}
	m.triggerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSkip counts a trigger that declined to run
func (m *SyncMetrics) RecordSkip(ctx context.Context, trigger, reason string) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.String("reason", reason),
	}
	m.triggerSkips.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddInFlight adjusts the in-flight reconciliation gauge
func (m *SyncMetrics) AddInFlight(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.inFlight.Add(ctx, delta)
}
