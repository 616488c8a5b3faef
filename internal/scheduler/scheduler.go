package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/livinlefevreloca/lectio/internal/broadcast"
	"github.com/livinlefevreloca/lectio/internal/connectivity"
	"github.com/livinlefevreloca/lectio/internal/cron"
	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/internal/syncer"
	"github.com/livinlefevreloca/lectio/internal/telemetry"
)

// Guard skip reasons
const (
	reasonRecentSuccess = "recent_success"
	reasonBeforeCutoff  = "before_cutoff"
	reasonMinInterval   = "min_interval"
	reasonFresh         = "cache_fresh"
	reasonNotActive     = "not_active"
	reasonGuardFailed   = "guard_check_failed"
)

// Scheduler owns the trigger policy and drives reconciliation for the engine
type Scheduler struct {
	// Configuration
	config Config
	logger *slog.Logger
	clock  Clock

	// Collaborators
	store      Store
	reconciler Reconciler
	conn       Connectivity
	slot       BackgroundSlot
	metrics    *telemetry.SyncMetrics
	hub        *broadcast.Hub[Event]
	catchUp    *rate.Limiter

	// State, guarded by mu
	mu            sync.Mutex
	state         State
	syncStatus    SyncStatus
	primary       *cron.Schedule
	backup        *cron.Schedule
	nextPrimary   time.Time
	nextBackup    time.Time
	nextFallback  time.Time
	retry         *retryTask
	slotAvailable bool
	connSub       *broadcast.Subscription[connectivity.Status]

	// Background slot admission, guarded by bgMu
	bgMu           sync.Mutex
	lastBackground time.Time

	// Control
	runCtx    context.Context
	stopLoops context.CancelFunc
	loops     sync.WaitGroup
	runs      sync.WaitGroup
}

// retryTask is the single pending retry of a failed primary sync
type retryTask struct {
	at     time.Time
	target time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures optional scheduler collaborators
type Option func(*Scheduler)

// WithClock overrides the time source
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithConnectivity enables catch-up syncs and paused status on reachability changes
func WithConnectivity(conn Connectivity) Option {
	return func(s *Scheduler) { s.conn = conn }
}

// WithBackgroundSlot selects the host background capability
func WithBackgroundSlot(slot BackgroundSlot) Option {
	return func(s *Scheduler) { s.slot = slot }
}

// WithMetrics attaches metric instruments
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a scheduler in the Uninitialized state
func New(config Config, store Store, reconciler Reconciler, opts ...Option) (*Scheduler, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	if store == nil || reconciler == nil {
		return nil, fmt.Errorf("scheduler requires a store and a reconciler")
	}

	s := &Scheduler{
		config:     config,
		logger:     slog.Default(),
		clock:      systemClock{},
		store:      store,
		reconciler: reconciler,
		slot:       ForegroundOnly{},
		state:      StateUninitialized,
		syncStatus: SyncIdle,
		catchUp:    rate.NewLimiter(rate.Every(config.CatchUpMinInterval), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = broadcast.NewHub[Event](config.EventSendTimeout, s.logger)

	return s, nil
}

// Initialize parses the schedules, arms every trigger and moves to Active.
// Failure to register the background slot is logged and leaves the slot
// unavailable; the other triggers still run.
func (s *Scheduler) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		state := s.state
		s.mu.Unlock()
		return &InitializationError{Op: "initialize", Err: fmt.Errorf("scheduler is %s", state)}
	}
	s.state = StateInitializing
	s.mu.Unlock()

	fail := func(op string, err error) error {
		s.mu.Lock()
		s.state = StateUninitialized
		s.mu.Unlock()
		s.logger.Error("scheduler initialization failed", "op", op, "error", err)
		return &InitializationError{Op: op, Err: err}
	}

	primary, err := cron.Parse(s.config.PrimarySchedule)
	if err != nil {
		return fail("parse primary schedule", err)
	}
	backup, err := cron.Parse(s.config.BackupSchedule)
	if err != nil {
		return fail("parse backup schedule", err)
	}

	// Runs outlive Stop so a reconciliation is never cut off mid-write
	runCtx := context.WithoutCancel(ctx)
	loopCtx, stopLoops := context.WithCancel(runCtx)

	slotAvailable := false
	if err := s.slot.Register(loopCtx, s.RunBackgroundSlot); err != nil {
		if errors.Is(err, ErrSlotUnsupported) {
			s.logger.Info("background slot not available on this platform", "platform", s.slot.Platform())
		} else {
			s.logger.Warn("background slot registration failed, continuing without it",
				"platform", s.slot.Platform(),
				"error", err)
		}
	} else {
		slotAvailable = true
	}

	now := s.clock.Now()
	nextPrimary := primary.Next(now)

	s.mu.Lock()
	if s.state != StateInitializing {
		s.mu.Unlock()
		stopLoops()
		if slotAvailable {
			s.slot.Close()
		}
		return &InitializationError{Op: "activate", Err: fmt.Errorf("scheduler stopped during initialization")}
	}
	s.primary = primary
	s.backup = backup
	s.nextPrimary = nextPrimary
	s.nextBackup = backup.Next(now)
	s.nextFallback = now.Add(s.config.FallbackInterval)
	s.slotAvailable = slotAvailable
	s.runCtx = runCtx
	s.stopLoops = stopLoops
	s.state = StateActive
	if s.conn != nil {
		s.connSub = s.conn.Subscribe(4)
	}
	connSub := s.connSub
	s.mu.Unlock()

	s.trim(runCtx, now)

	s.loops.Add(1)
	go s.run(loopCtx)

	if connSub != nil {
		s.loops.Add(1)
		go s.watchConnectivity(loopCtx, connSub)
	}

	s.logger.Info("scheduler active",
		"primary", primary.String(),
		"backup", backup.String(),
		"next_primary", nextPrimary,
		"background_slot", slotAvailable)
	s.emit(Event{Phase: PhaseState, Status: SyncIdle, Message: "scheduler active"})

	return nil
}

// Stop cancels every armed trigger and the pending retry, releases the
// background slot, waits for in-flight runs and closes the event stream.
// If ctx ends before runs finish, Stop returns ctx.Err() with the stream closed.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return nil
	case StateActive:
	default:
		s.state = StateStopped
		s.mu.Unlock()
		s.hub.Close()
		return nil
	}

	s.state = StateStopped
	s.stopLoops()
	if s.retry != nil {
		s.retry.cancel()
		s.retry = nil
	}
	connSub := s.connSub
	s.connSub = nil
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")

	if connSub != nil {
		s.conn.Unsubscribe(connSub)
	}
	s.loops.Wait()

	if err := s.slot.Close(); err != nil {
		s.logger.Warn("failed to release background slot", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.logger.Warn("stopped before in-flight syncs finished", "error", err)
	}

	s.emit(Event{Phase: PhaseState, Status: SyncIdle, Message: "scheduler stopped"})
	s.hub.Close()
	s.logger.Info("scheduler stopped")
	return err
}

// Subscribe registers an observer of lifecycle events
func (s *Scheduler) Subscribe(buffer int) *broadcast.Subscription[Event] {
	return s.hub.Subscribe(buffer)
}

// Unsubscribe removes an observer
func (s *Scheduler) Unsubscribe(sub *broadcast.Subscription[Event]) {
	s.hub.Unsubscribe(sub)
}

// State returns the lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.loops.Done()

	ticker := time.NewTicker(s.config.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(s.clock.Now())
		}
	}
}

// tick fires every trigger that is due at now and re-arms it
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}

	var (
		due     []Trigger
		trimDue bool
	)
	if !now.Before(s.nextPrimary) {
		due = append(due, TriggerPrimary)
		s.nextPrimary = s.primary.Next(now)
	}
	if !now.Before(s.nextBackup) {
		due = append(due, TriggerBackup)
		s.nextBackup = s.backup.Next(now)
	}
	if !now.Before(s.nextFallback) {
		due = append(due, TriggerFallback)
		s.nextFallback = now.Add(s.config.FallbackInterval)
		trimDue = true
	}

	var retry *retryTask
	if s.retry != nil && !now.Before(s.retry.at) {
		retry = s.retry
		s.retry = nil
	}
	s.mu.Unlock()

	// The window moves with the clock whether or not any sync succeeds
	if trimDue {
		s.trim(s.runCtx, now)
	}

	today := liturgy.StartOfDay(now)
	for _, trigger := range due {
		s.dispatch(trigger, today)
	}

	if retry != nil {
		if retry.ctx.Err() == nil {
			s.dispatch(TriggerRetry, retry.target)
		}
		retry.cancel()
	}
}

// dispatch runs a trigger on its own goroutine
func (s *Scheduler) dispatch(trigger Trigger, target time.Time) {
	if !s.track() {
		return
	}

	go func() {
		defer s.untrack()
		s.fire(s.runCtx, trigger, target)
	}()
}

// track registers an in-flight run if the scheduler is active
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	s.runs.Add(1)
	return true
}

func (s *Scheduler) untrack() {
	s.runs.Done()
}

// fire applies the trigger's guard and runs it
func (s *Scheduler) fire(ctx context.Context, trigger Trigger, target time.Time) {
	if skip, reason := s.guard(ctx, trigger); skip {
		s.skip(ctx, trigger, reason)
		return
	}

	_, err := s.execute(ctx, trigger, target)

	switch {
	case trigger == TriggerPrimary && err != nil:
		s.scheduleRetry(target)
	case trigger == TriggerPrimary:
		s.cancelRetry()
	case trigger == TriggerRetry && err != nil:
		s.logger.Warn("retry of primary sync failed, no further retry scheduled",
			"date", liturgy.DateKey(target))
	}
}

// guard reports whether an automated trigger should be skipped
func (s *Scheduler) guard(ctx context.Context, trigger Trigger) (bool, string) {
	now := s.clock.Now()

	switch trigger {
	case TriggerFallback:
		if now.Hour() < s.config.FallbackCutoffHour {
			return true, reasonBeforeCutoff
		}
	case TriggerBackup, TriggerCatchUp:
	default:
		return false, ""
	}

	recent, err := s.store.RecentSuccessfulSync(ctx, now, s.config.GuardWindow)
	if err != nil {
		s.logger.Error("guard check failed", "trigger", trigger, "error", err)
		return true, reasonGuardFailed
	}
	if recent {
		return true, reasonRecentSuccess
	}
	return false, ""
}

func (s *Scheduler) skip(ctx context.Context, trigger Trigger, reason string) {
	s.logger.Info("sync skipped", "trigger", trigger, "reason", reason)
	s.metrics.RecordSkip(ctx, string(trigger), reason)
	s.emit(Event{
		Phase:   PhaseSkipped,
		Status:  SyncIdle,
		Trigger: trigger,
		Message: "skipped: " + reason,
	})
}

// execute reconciles target and its read-ahead days, records the aggregate
// job and publishes running followed by exactly one terminal event
func (s *Scheduler) execute(ctx context.Context, trigger Trigger, target time.Time) (syncer.Result, error) {
	start := s.clock.Now()
	key := liturgy.DateKey(target)
	job := &db.SyncJob{
		JobName:    syncer.JobName(trigger.Purpose(), key),
		TargetDate: key,
		Trigger:    string(trigger),
		Status:     db.JobRunning,
		CreatedAt:  start,
	}

	s.setSyncStatus(SyncSyncing)
	s.emit(Event{Phase: PhaseRunning, Status: SyncSyncing, Trigger: trigger, Message: "syncing " + key})
	s.logger.Info("sync started", "trigger", trigger, "date", key)

	if err := s.store.RecordSyncJob(ctx, job); err != nil {
		s.logger.Error("failed to record sync start", "trigger", trigger, "date", key, "error", err)
	}

	rctx := syncer.WithTrigger(ctx, string(trigger))
	var (
		total syncer.Result
		errs  []error
	)
	for i := 0; i <= s.config.ReadAheadDays; i++ {
		res, err := s.reconciler.Reconcile(rctx, liturgy.AddDays(target, i))
		total = total.Add(res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	runErr := errors.Join(errs...)

	completed := s.clock.Now()
	duration := completed.Sub(start)
	job.CompletedAt = &completed
	job.RecordsProcessed = total.Processed()
	job.DurationSeconds = duration.Seconds()
	job.Status = db.JobSuccess
	if runErr != nil {
		msg := runErr.Error()
		job.Status = db.JobFailed
		job.ErrorMessage = &msg
	}
	if err := s.store.RecordSyncJob(ctx, job); err != nil {
		s.logger.Error("failed to record sync outcome", "trigger", trigger, "date", key, "error", err)
		runErr = errors.Join(runErr, err)
	}

	s.metrics.RecordTrigger(ctx, string(trigger), duration, runErr == nil)

	if runErr != nil {
		s.setSyncStatus(SyncError)
		s.logger.Error("sync failed", "trigger", trigger, "date", key, "duration", duration, "error", runErr)
		s.emit(Event{Phase: PhaseError, Status: SyncError, Trigger: trigger, Message: "sync failed for " + key})
		return total, runErr
	}

	s.trim(ctx, start)

	s.setSyncStatus(SyncSuccess)
	s.logger.Info("sync completed",
		"trigger", trigger,
		"date", key,
		"created", total.Created,
		"updated", total.Updated,
		"duration", duration)
	s.emit(Event{
		Phase:   PhaseCompleted,
		Status:  SyncSuccess,
		Trigger: trigger,
		Message: fmt.Sprintf("synced %s: %d created, %d updated", key, total.Created, total.Updated),
	})
	return total, nil
}

// windowBounds returns the first and last date keys the cache keeps at now
func (s *Scheduler) windowBounds(now time.Time) (string, string) {
	today := liturgy.StartOfDay(now)
	return liturgy.DateKey(liturgy.AddDays(today, -s.config.Window.Before)),
		liturgy.DateKey(liturgy.AddDays(today, s.config.Window.After))
}

// inWindow reports whether date falls inside the cache window at now
func (s *Scheduler) inWindow(now, date time.Time) bool {
	from, to := s.windowBounds(now)
	key := liturgy.DateKey(date)
	return key >= from && key <= to
}

// trim drops cached days outside the retention window around today
func (s *Scheduler) trim(ctx context.Context, now time.Time) {
	res, err := s.store.TrimOutsideWindow(ctx, liturgy.StartOfDay(now), s.config.Window.Before, s.config.Window.After)
	if err != nil {
		s.logger.Warn("cache trim failed", "error", err)
		return
	}
	if res.DaysRemoved > 0 || res.ReadingsRemoved > 0 {
		s.logger.Info("trimmed cache window",
			"days_removed", res.DaysRemoved,
			"readings_removed", res.ReadingsRemoved)
	}
}

// scheduleRetry arms the single retry of a failed primary sync
func (s *Scheduler) scheduleRetry(target time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}
	if s.retry != nil {
		s.retry.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.retry = &retryTask{
		at:     s.clock.Now().Add(s.config.RetryDelay),
		target: target,
		ctx:    ctx,
		cancel: cancel,
	}
	s.logger.Info("primary sync failed, retry scheduled",
		"date", liturgy.DateKey(target),
		"at", s.retry.at)
}

func (s *Scheduler) cancelRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retry != nil {
		s.retry.cancel()
		s.retry = nil
	}
}

// watchConnectivity pauses on offline and attempts a guarded catch-up sync
// when the remote becomes reachable again
func (s *Scheduler) watchConnectivity(ctx context.Context, sub *broadcast.Subscription[connectivity.Status]) {
	defer s.loops.Done()

	for {
		status, ok := sub.Next(ctx)
		if !ok {
			return
		}
		s.onConnectivity(status)
	}
}

func (s *Scheduler) onConnectivity(status connectivity.Status) {
	switch status {
	case connectivity.StatusOffline:
		s.setSyncStatus(SyncPaused)
		s.emit(Event{Phase: PhaseState, Status: SyncPaused, Message: "offline"})

	case connectivity.StatusOnline:
		s.setSyncStatus(SyncIdle)
		s.emit(Event{Phase: PhaseState, Status: SyncIdle, Message: "online"})

		now := s.clock.Now()
		if !s.catchUp.AllowN(now, 1) {
			s.logger.Debug("catch-up sync rate limited")
			return
		}
		s.dispatch(TriggerCatchUp, liturgy.StartOfDay(now))
	}
}

// TriggerManualSync reconciles date and its read-ahead days immediately,
// defaulting to today. It bypasses every guard and returns the outcome.
func (s *Scheduler) TriggerManualSync(ctx context.Context, date *time.Time) (syncer.Result, error) {
	if !s.track() {
		return syncer.Result{}, ErrNotActive
	}
	defer s.untrack()

	now := s.clock.Now()
	target := liturgy.StartOfDay(now)
	if date != nil {
		target = liturgy.StartOfDay(*date)
		if !s.inWindow(now, target) {
			from, to := s.windowBounds(now)
			return syncer.Result{}, fmt.Errorf("%w: %s not in [%s, %s]",
				ErrOutsideWindow, liturgy.DateKey(target), from, to)
		}
	}

	return s.execute(context.WithoutCancel(ctx), TriggerManual, target)
}

// RunBackgroundSlot is the handler invoked by the host background slot.
// It syncs when inside the configured hour window or when the cache is
// stale, applies the host deadline, and always returns an acknowledged result.
func (s *Scheduler) RunBackgroundSlot(ctx context.Context) BackgroundResult {
	result := BackgroundResult{Acknowledged: true}
	finish := func(reason string) BackgroundResult {
		result.Reason = reason
		result.CompletedAt = s.clock.Now()
		return result
	}

	if !s.track() {
		return finish(reasonNotActive)
	}
	defer s.untrack()

	now := s.clock.Now()
	cfg := s.config.Background

	reason, admitted := s.admitBackground(ctx, now)
	if !admitted {
		s.skip(ctx, TriggerBackground, reason)
		return finish(reason)
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Deadline)
	defer cancel()

	res, err := s.execute(runCtx, TriggerBackground, liturgy.StartOfDay(now))
	result.Ran = true
	result.Result = res
	if err != nil {
		result.Error = err.Error()
	}
	return finish(reason)
}

// admitBackground decides whether a slot invocation at now runs and, if so,
// records it as the last background run. The interval check, the staleness
// check and the record happen under bgMu so overlapping invocations cannot
// both be admitted.
func (s *Scheduler) admitBackground(ctx context.Context, now time.Time) (string, bool) {
	cfg := s.config.Background

	s.bgMu.Lock()
	defer s.bgMu.Unlock()

	if !s.lastBackground.IsZero() && now.Sub(s.lastBackground) < cfg.MinInterval {
		return reasonMinInterval, false
	}

	reason := "in_window"
	if h := now.Hour(); h < cfg.WindowStartHour || h >= cfg.WindowEndHour {
		stale, err := s.cacheStale(ctx, now)
		if err != nil {
			s.logger.Warn("staleness check failed, syncing anyway", "error", err)
		}
		if !stale && err == nil {
			return reasonFresh, false
		}
		reason = "stale"
	}

	s.lastBackground = now
	return reason, true
}

// cacheStale reports whether the last successful sync is older than StaleAfter
func (s *Scheduler) cacheStale(ctx context.Context, now time.Time) (bool, error) {
	last, err := s.store.LastSuccessfulSync(ctx)
	if err != nil {
		return true, err
	}
	return last == nil || now.Sub(*last) > s.config.Background.StaleAfter, nil
}

func (s *Scheduler) setSyncStatus(status SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus = status
}

// emit publishes an event; publishing after the stream closed is dropped
func (s *Scheduler) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock.Now()
	}
	if err := s.hub.Publish(e); err != nil {
		s.logger.Debug("event not published", "phase", e.Phase, "error", err)
	}
}
