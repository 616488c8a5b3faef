package testutil

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MockClock is a settable time source shared by the scheduler and coordinator
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// LogEntry is one captured log record with its attributes flattened
type LogEntry struct {
	Level   slog.Level
	Message string
	Fields  map[string]any
}

// TestLogger captures everything logged through Logger() at every level
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

// Logger returns a *slog.Logger recording into l
func (l *TestLogger) Logger() *slog.Logger {
	return slog.New(&captureHandler{sink: l})
}

func (l *TestLogger) record(e LogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of every captured entry in logging order
func (l *TestLogger) Entries() []LogEntry {
	return l.filter(func(LogEntry) bool { return true })
}

// EntriesWithMessage returns the entries logged with exactly msg
func (l *TestLogger) EntriesWithMessage(msg string) []LogEntry {
	return l.filter(func(e LogEntry) bool { return e.Message == msg })
}

// HasMessage reports whether any entry at any level has exactly msg
func (l *TestLogger) HasMessage(msg string) bool {
	return len(l.EntriesWithMessage(msg)) > 0
}

func (l *TestLogger) HasError() bool {
	return len(l.filter(func(e LogEntry) bool { return e.Level == slog.LevelError })) > 0
}

func (l *TestLogger) HasWarning() bool {
	return len(l.filter(func(e LogEntry) bool { return e.Level == slog.LevelWarn })) > 0
}

func (l *TestLogger) filter(keep func(LogEntry) bool) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []LogEntry
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// captureHandler is the slog.Handler behind TestLogger.Logger. Attributes
// added with With are merged into every record; groups are ignored.
type captureHandler struct {
	sink  *TestLogger
	attrs []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})
	h.sink.record(LogEntry{Level: r.Level, Message: r.Message, Fields: fields})
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &captureHandler{sink: h.sink, attrs: merged}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// WaitFor polls condition every 5ms until it holds or timeout elapses
func WaitFor(t TestingT, condition func() bool, timeout time.Duration, msgAndArgs ...any) bool {
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Errorf("timeout waiting for condition: %v", msgAndArgs)
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

// TestingT is the subset of *testing.T that WaitFor needs
type TestingT interface {
	Errorf(format string, args ...any)
}
