// internal/notify/async.go
package notify

import (
	"context"
	"errors"
	"sync"

	"barternexus/internal/market"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

type queued struct {
	ctx context.Context
	n   market.Notification
}

// Async hands notifications to a background worker so that callers never
// wait on the downstream sink. When the queue is full the notification is
// dropped and ErrQueueFull returned.
type Async struct {
	next   market.NotificationSink
	queue  chan queued
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next market.NotificationSink, size int, logger *zap.Logger) *Async {
	a := &Async{
		next:   next,
		queue:  make(chan queued, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(ctx context.Context, n market.Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), n: n}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		if err := a.next.Notify(q.ctx, q.n); err != nil {
			a.logger.Error("Notification delivery failed",
				zap.String("user_id", q.n.UserID.String()),
				zap.String("kind", string(q.n.Kind)),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting notifications and waits until the queue is drained
// or ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
