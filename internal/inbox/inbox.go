package inbox

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Inbox is a bounded, typed message queue with a send timeout.
// T is the message type that will be sent through the inbox
type Inbox[T any] struct {
	ch      chan T
	timeout time.Duration
	logger  *slog.Logger

	sent     atomic.Int64
	received atomic.Int64
	dropped  atomic.Int64
	maxDepth atomic.Int64

	closeOnce sync.Once
}

// Stats tracks inbox usage
type Stats struct {
	TotalSent     int64
	TotalReceived int64
	DroppedCount  int64
	CurrentDepth  int
	MaxDepthSeen  int
}

// New creates a new inbox with the specified buffer size and timeout.
// A zero timeout makes Send non-blocking.
func New[T any](bufferSize int, timeout time.Duration, logger *slog.Logger) *Inbox[T] {
	return &Inbox[T]{
		ch:      make(chan T, bufferSize),
		timeout: timeout,
		logger:  logger,
	}
}

// Send delivers msg, waiting up to the configured timeout for space.
// Returns false and counts a drop if the inbox stayed full.
func (ib *Inbox[T]) Send(msg T) bool {
	select {
	case ib.ch <- msg:
		ib.delivered()
		return true
	default:
	}

	if ib.timeout <= 0 {
		ib.drop()
		return false
	}

	timer := time.NewTimer(ib.timeout)
	defer timer.Stop()

	select {
	case ib.ch <- msg:
		ib.delivered()
		return true
	case <-timer.C:
		ib.drop()
		return false
	}
}

func (ib *Inbox[T]) delivered() {
	ib.sent.Add(1)
	depth := int64(len(ib.ch))
	for {
		seen := ib.maxDepth.Load()
		if depth <= seen || ib.maxDepth.CompareAndSwap(seen, depth) {
			return
		}
	}
}

func (ib *Inbox[T]) drop() {
	ib.dropped.Add(1)
	if ib.logger != nil {
		ib.logger.Warn("inbox send timeout",
			"timeout", ib.timeout,
			"current_depth", len(ib.ch))
	}
}

// Receive blocks until a message is available, the inbox is closed, or ctx ends
func (ib *Inbox[T]) Receive(ctx context.Context) (T, bool) {
	select {
	case msg, ok := <-ib.ch:
		if ok {
			ib.received.Add(1)
		}
		return msg, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// C exposes the receive side for use in select statements.
// Messages read from C are not counted as received.
func (ib *Inbox[T]) C() <-chan T {
	return ib.ch
}

// GetStats returns a snapshot of the inbox statistics
func (ib *Inbox[T]) GetStats() Stats {
	return Stats{
		TotalSent:     ib.sent.Load(),
		TotalReceived: ib.received.Load(),
		DroppedCount:  ib.dropped.Load(),
		CurrentDepth:  len(ib.ch),
		MaxDepthSeen:  int(ib.maxDepth.Load()),
	}
}

// Len returns the current number of messages in the inbox
func (ib *Inbox[T]) Len() int {
	return len(ib.ch)
}

// Close closes the inbox channel. The caller must guarantee no concurrent Send.
func (ib *Inbox[T]) Close() {
	ib.closeOnce.Do(func() {
		close(ib.ch)
	})
}
