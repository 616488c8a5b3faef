package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/livinlefevreloca/lectio/internal/broadcast"
	"github.com/livinlefevreloca/lectio/internal/connectivity"
	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/syncer"
)

// State is the lifecycle state of the scheduler
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateStopped // Terminal
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SyncStatus is the current sync activity reported to observers
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
	SyncPaused  SyncStatus = "paused"
)

// Phase identifies what an event reports
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseError     Phase = "error"
	PhaseSkipped   Phase = "skipped"
	PhaseState     Phase = "state"
)

// Trigger names the source that started a sync
type Trigger string

const (
	TriggerPrimary    Trigger = "primary"
	TriggerBackup     Trigger = "backup"
	TriggerRetry      Trigger = "retry"
	TriggerFallback   Trigger = "fallback"
	TriggerBackground Trigger = "background"
	TriggerCatchUp    Trigger = "catch_up"
	TriggerManual     Trigger = "manual"
)

// Purpose returns the ledger purpose of the aggregate job a trigger writes.
// The primary, backup and retry triggers share one daily row per date.
func (t Trigger) Purpose() string {
	switch t {
	case TriggerPrimary, TriggerBackup, TriggerRetry:
		return "daily_sync"
	case TriggerFallback:
		return "fallback_sync"
	case TriggerBackground:
		return "background_sync"
	case TriggerCatchUp:
		return "catch_up_sync"
	case TriggerManual:
		return "manual_sync"
	default:
		return string(t) + "_sync"
	}
}

// Event is one lifecycle notification published to observers
type Event struct {
	Phase     Phase      `json:"phase"`
	Status    SyncStatus `json:"status"`
	Trigger   Trigger    `json:"trigger,omitempty"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// Status is the scheduler's query surface snapshot
type Status struct {
	State                   State      `json:"state"`
	Initialized             bool       `json:"initialized"`
	Active                  bool       `json:"active"`
	Platform                string     `json:"platform"`
	HasFallbackTimer        bool       `json:"has_fallback_timer"`
	BackgroundSlotAvailable bool       `json:"background_slot_available"`
	SyncStatus              SyncStatus `json:"sync_status"`
	Connectivity            string     `json:"connectivity"`
	NextPrimary             *time.Time `json:"next_primary,omitempty"`
	NextBackup              *time.Time `json:"next_backup,omitempty"`
	NextFallback            *time.Time `json:"next_fallback,omitempty"`
	PendingRetry            *time.Time `json:"pending_retry,omitempty"`
	InFlight                []string   `json:"in_flight"`
}

// BackgroundResult is what a background slot run reports back to the host.
// Acknowledged is always true.
type BackgroundResult struct {
	Acknowledged bool          `json:"acknowledged"`
	Ran          bool          `json:"ran"`
	Reason       string        `json:"reason"`
	Result       syncer.Result `json:"result"`
	Error        string        `json:"error,omitempty"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Standard errors
var (
	ErrNotActive = errors.New("scheduler: not active")
	// ErrOutsideWindow rejects a manual sync for a date the cache does not keep
	ErrOutsideWindow = errors.New("scheduler: date outside cache window")
)

// InitializationError reports a failed Initialize step
type InitializationError struct {
	Op  string
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("scheduler initialization: %s: %v", e.Op, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// Store is the cache and ledger surface the scheduler uses
type Store interface {
	RecordSyncJob(ctx context.Context, job *db.SyncJob) error
	RecentSuccessfulSync(ctx context.Context, now time.Time, within time.Duration) (bool, error)
	LastSuccessfulSync(ctx context.Context) (*time.Time, error)
	TrimOutsideWindow(ctx context.Context, center time.Time, before, after int) (db.TrimResult, error)
	RecentSyncJobs(ctx context.Context, limit int) ([]db.SyncJob, error)
	PerformanceMetrics(ctx context.Context, since time.Time) (db.PerformanceMetrics, error)
	GetCacheStats(ctx context.Context) (db.CacheStats, error)
}

// Reconciler runs one reconciliation pass for a date
type Reconciler interface {
	Reconcile(ctx context.Context, date time.Time) (syncer.Result, error)
	InFlight() []string
}

// Connectivity is the reachability source the scheduler observes
type Connectivity interface {
	Current() connectivity.Status
	Subscribe(buffer int) *broadcast.Subscription[connectivity.Status]
	Unsubscribe(sub *broadcast.Subscription[connectivity.Status])
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
