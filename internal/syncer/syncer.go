// Package syncer reconciles the local cache against the remote source one
// date at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/internal/remote"
	"github.com/livinlefevreloca/lectio/internal/telemetry"
)

// PurposeReconcile names the per-date ledger rows written by Reconcile
const PurposeReconcile = db.ReconcilePurpose

// JobName derives a ledger job name from a purpose and target date key
func JobName(purpose, date string) string {
	return purpose + ":" + date
}

// Store is the slice of the cache the coordinator reads and writes
type Store interface {
	RecordSyncJob(ctx context.Context, job *db.SyncJob) error
	ReadingHashes(ctx context.Context, date string) (map[string]string, error)
	ApplySnapshot(ctx context.Context, day *liturgy.Day, changed []liturgy.Reading, removed []string) error
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Result counts the readings a reconciliation created or updated.
// Unchanged readings are in neither bucket.
type Result struct {
	Created int `json:"readings_created"`
	Updated int `json:"readings_updated"`
}

// Processed is the ledger's records_processed value
func (r Result) Processed() int {
	return r.Created + r.Updated
}

// Add sums two results
func (r Result) Add(o Result) Result {
	return Result{Created: r.Created + o.Created, Updated: r.Updated + o.Updated}
}

type triggerKey struct{}

// WithTrigger tags ctx with the trigger that started the work, recorded on
// the ledger rows Reconcile writes
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFromContext returns the trigger set by WithTrigger, or "unknown"
func TriggerFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// Coordinator runs reconciliation passes. Concurrent passes for the same
// date share a single remote fetch.
type Coordinator struct {
	store   Store
	source  remote.Source
	clock   Clock
	logger  *slog.Logger
	metrics *telemetry.SyncMetrics

	group singleflight.Group

	mu       sync.Mutex
	inFlight map[string]time.Time
}

// NewCoordinator creates a coordinator. clock and logger may be nil.
func NewCoordinator(store Store, source remote.Source, clock Clock, logger *slog.Logger) *Coordinator {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		source:   source,
		clock:    clock,
		logger:   logger,
		inFlight: make(map[string]time.Time),
	}
}

// SetMetrics attaches metric instruments. A nil value disables recording.
func (c *Coordinator) SetMetrics(m *telemetry.SyncMetrics) {
	c.metrics = m
}

// Reconcile fetches date from the remote, writes what changed to the cache
// and records the outcome under reconcile:<date>. A call that arrives while
// the same date is already in progress waits for and returns that result.
func (c *Coordinator) Reconcile(ctx context.Context, date time.Time) (Result, error) {
	key := liturgy.DateKey(date)

	v, err, shared := c.group.Do(key, func() (any, error) {
		c.begin(ctx, key)
		defer c.end(ctx, key)
		return c.reconcile(ctx, date, key)
	})
	if shared {
		c.logger.Debug("joined in-flight reconciliation", "date", key)
	}

	res, _ := v.(Result)
	return res, err
}

// InFlight lists the dates currently being reconciled, sorted
func (c *Coordinator) InFlight() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	dates := make([]string, 0, len(c.inFlight))
	for d := range c.inFlight {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func (c *Coordinator) begin(ctx context.Context, key string) {
	c.mu.Lock()
	c.inFlight[key] = c.clock.Now()
	c.mu.Unlock()
	c.metrics.AddInFlight(ctx, 1)
}

func (c *Coordinator) end(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()
	c.metrics.AddInFlight(ctx, -1)
}

func (c *Coordinator) reconcile(ctx context.Context, date time.Time, key string) (Result, error) {
	start := c.clock.Now()
	job := &db.SyncJob{
		JobName:    JobName(PurposeReconcile, key),
		TargetDate: key,
		Trigger:    TriggerFromContext(ctx),
		Status:     db.JobRunning,
		CreatedAt:  start,
	}

	if err := c.store.RecordSyncJob(ctx, job); err != nil {
		c.logger.Error("failed to mark reconciliation running", "date", key, "error", err)
		return Result{}, fmt.Errorf("record running job for %s: %w", key, err)
	}

	res, err := c.apply(ctx, date, key)
	duration := c.clock.Now().Sub(start)
	c.metrics.RecordReconcile(ctx, res.Created, res.Updated, duration, err == nil)

	if err != nil {
		c.logger.Error("reconciliation failed", "date", key, "duration", duration, "error", err)
		if ferr := c.finalize(ctx, job, db.JobFailed, Result{}, duration, err); ferr != nil {
			return Result{}, errors.Join(err, ferr)
		}
		return Result{}, err
	}

	// The ledger write follows the cache write so a success row implies the
	// cache holds the data
	if err := c.finalize(ctx, job, db.JobSuccess, res, duration, nil); err != nil {
		c.logger.Error("failed to record reconciliation success", "date", key, "error", err)
		return res, err
	}

	c.logger.Info("reconciled date",
		"date", key,
		"created", res.Created,
		"updated", res.Updated,
		"duration", duration)
	return res, nil
}

// apply fetches, diffs and writes one date. The cache is untouched on any error.
func (c *Coordinator) apply(ctx context.Context, date time.Time, key string) (Result, error) {
	snap, err := c.source.Fetch(ctx, date)
	if err != nil {
		if !remote.IsFetchError(err) {
			err = &remote.FetchError{Date: key, Err: err}
		}
		return Result{}, err
	}
	if err := snap.Normalize(key); err != nil {
		return Result{}, &remote.FetchError{Date: key, Err: err}
	}

	cached, err := c.store.ReadingHashes(ctx, key)
	if err != nil {
		return Result{}, err
	}

	changed, removed, res := Diff(cached, snap.Readings)

	now := c.clock.Now().UTC()
	snap.Day.CacheTimestamp = now
	for i := range changed {
		changed[i].CacheTimestamp = now
	}

	if err := c.store.ApplySnapshot(ctx, &snap.Day, changed, removed); err != nil {
		return Result{}, err
	}

	if len(removed) > 0 {
		c.logger.Info("removed readings no longer listed remotely", "date", key, "count", len(removed))
	}
	return res, nil
}

// Diff compares fetched readings against cached id -> content hash pairs.
// A reading absent locally is created, one with a different hash is updated
// and one with an equal hash is unchanged. Cached ids missing from remote are
// returned as removed, sorted.
func Diff(cached map[string]string, fetched []liturgy.Reading) (changed []liturgy.Reading, removed []string, res Result) {
	seen := make(map[string]bool, len(fetched))
	for _, r := range fetched {
		seen[r.ID] = true
		hash, ok := cached[r.ID]
		switch {
		case !ok:
			res.Created++
			changed = append(changed, r)
		case hash != r.ContentHash():
			res.Updated++
			changed = append(changed, r)
		}
	}

	for id := range cached {
		if !seen[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return changed, removed, res
}

func (c *Coordinator) finalize(ctx context.Context, job *db.SyncJob, status db.JobStatus, res Result, duration time.Duration, cause error) error {
	completed := c.clock.Now()
	job.Status = status
	job.CompletedAt = &completed
	job.RecordsProcessed = res.Processed()
	job.DurationSeconds = duration.Seconds()
	job.ErrorMessage = nil
	if cause != nil {
		msg := cause.Error()
		job.ErrorMessage = &msg
	}
	return c.store.RecordSyncJob(ctx, job)
}
