// Package broadcast fans values out to any number of subscribers.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livinlefevreloca/lectio/internal/inbox"
)

// ErrClosed is returned by Publish after the hub has been closed
var ErrClosed = errors.New("broadcast: hub closed")

// DefaultSendTimeout bounds how long Publish waits on a full subscriber
const DefaultSendTimeout = 50 * time.Millisecond

// Subscription is one observer's view of a hub
type Subscription[T any] struct {
	ID    string
	inbox *inbox.Inbox[T]
}

// C returns the channel events are delivered on. It is closed when the
// subscription is removed or the hub closes.
func (s *Subscription[T]) C() <-chan T {
	return s.inbox.C()
}

// Next blocks for the next value. It returns false once the subscription
// is closed and drained, or when ctx ends.
func (s *Subscription[T]) Next(ctx context.Context) (T, bool) {
	return s.inbox.Receive(ctx)
}

// Stats reports delivery counters for this subscriber
func (s *Subscription[T]) Stats() inbox.Stats {
	return s.inbox.GetStats()
}

// Hub is a multi-subscriber publish/subscribe channel. It keeps no history:
// a subscriber only sees values published after it subscribed.
type Hub[T any] struct {
	mu          sync.RWMutex
	subs        map[string]*Subscription[T]
	closed      bool
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewHub creates a hub. A non-positive sendTimeout uses DefaultSendTimeout.
func NewHub[T any](sendTimeout time.Duration, logger *slog.Logger) *Hub[T] {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub[T]{
		subs:        make(map[string]*Subscription[T]),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Subscribe registers a new subscriber with the given queue depth.
// Subscribing to a closed hub returns an already closed subscription.
func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 0 {
		buffer = 0
	}
	sub := &Subscription[T]{
		ID:    uuid.NewString(),
		inbox: inbox.New[T](buffer, h.sendTimeout, h.logger),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.inbox.Close()
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Unknown or already
// removed subscriptions are ignored.
func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	sub.inbox.Close()
}

// Publish delivers v to every current subscriber. A subscriber whose queue
// stays full past the send timeout misses v.
func (h *Hub[T]) Publish(v T) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	for _, sub := range h.subs {
		if !sub.inbox.Send(v) {
			h.logger.Debug("subscriber dropped event", "subscriber", sub.ID)
		}
	}
	return nil
}

// Len returns the number of active subscribers
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription. Further Publish calls fail with ErrClosed.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.inbox.Close()
		delete(h.subs, id)
	}
}

// Closed reports whether Close has been called
func (h *Hub[T]) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}
