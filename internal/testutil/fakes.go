package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/db/migrations"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/tools/migrator"
)

// FakeSource is an in-memory remote source. Snapshots and scripted
// failures are keyed by date; unknown dates fail.
type FakeSource struct {
	mu        sync.Mutex
	snapshots map[string]liturgy.Snapshot
	failures  map[string][]error
	calls     map[string]int
	block     chan struct{}
	started   chan string
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		snapshots: make(map[string]liturgy.Snapshot),
		failures:  make(map[string][]error),
		calls:     make(map[string]int),
	}
}

// Set stores the snapshot returned for its day's date
func (f *FakeSource) Set(snap liturgy.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snap.Day.Date] = snap
}

// FailNext queues errors returned, one per call, before falling back to the snapshot
func (f *FakeSource) FailNext(date string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[date] = append(f.failures[date], errs...)
}

// Block makes Fetch wait until the returned release func is called. Each
// blocked call first reports its date on Started.
func (f *FakeSource) Block() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	f.started = make(chan string, 64)
	ch := f.block
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Started returns the channel blocked fetches announce themselves on
func (f *FakeSource) Started() <-chan string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Calls returns how many times date was fetched
func (f *FakeSource) Calls(date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[date]
}

// TotalCalls returns the number of fetches across all dates
func (f *FakeSource) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeSource) Fetch(ctx context.Context, date time.Time) (*liturgy.Snapshot, error) {
	key := liturgy.DateKey(date)

	f.mu.Lock()
	f.calls[key]++
	block, started := f.block, f.started
	f.mu.Unlock()

	if block != nil {
		started <- key
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if queued := f.failures[key]; len(queued) > 0 {
		f.failures[key] = queued[1:]
		return nil, queued[0]
	}

	snap, ok := f.snapshots[key]
	if !ok {
		return nil, fmt.Errorf("no snapshot for %s", key)
	}

	out := liturgy.Snapshot{Day: snap.Day, Readings: append([]liturgy.Reading(nil), snap.Readings...)}
	return &out, nil
}

// MakeSnapshot builds a snapshot for date with n readings
func MakeSnapshot(date string, n int) liturgy.Snapshot {
	snap := liturgy.Snapshot{
		Day: liturgy.Day{
			ID:     "day-" + date,
			Date:   date,
			Season: "Ordinary Time",
			Week:   "1",
			Title:  "Weekday " + date,
			Color:  "green",
			Rank:   "weekday",
		},
	}
	for i := 1; i <= n; i++ {
		snap.Readings = append(snap.Readings, liturgy.Reading{
			ID:       fmt.Sprintf("%s-r%d", date, i),
			DayDate:  date,
			Order:    i,
			Kind:     "reading",
			Citation: fmt.Sprintf("Ps %d", i),
			Title:    fmt.Sprintf("Reading %d", i),
			Body:     fmt.Sprintf("Text of reading %d for %s", i, date),
		})
	}
	return snap
}

// NewTestDB opens an in-memory SQLite cache with the embedded schema applied
func NewTestDB(t testing.TB) *db.DB {
	t.Helper()

	store, err := db.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := migrator.RunMigrations(context.Background(), store.DB, migrations.FS, nil); err != nil {
		store.Close()
		t.Fatalf("failed to initialize test schema: %v", err)
	}

	t.Cleanup(func() { store.Close() })
	return store
}
