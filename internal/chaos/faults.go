// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"barternexus/internal/market"

	"github.com/google/uuid"
)

// ErrInjected marks failures produced by fault injection.
var ErrInjected = errors.New("chaos: injected fault")

// FaultyGateway wraps a gateway with injectable latency and transaction
// failures.
type FaultyGateway struct {
	inner     market.Gateway
	latency   atomic.Int64
	failEvery atomic.Int64
	calls     atomic.Int64
	injected  atomic.Int64
}

func NewFaultyGateway(inner market.Gateway) *FaultyGateway {
	return &FaultyGateway{inner: inner}
}

// InjectLatency delays every transaction by d before it starts.
func (g *FaultyGateway) InjectLatency(d time.Duration) {
	g.latency.Store(int64(d))
}

// FailEvery fails every nth transaction before it runs. Zero disables it.
func (g *FaultyGateway) FailEvery(n int) {
	g.failEvery.Store(int64(n))
}

// Reset removes every injected fault.
func (g *FaultyGateway) Reset() {
	g.latency.Store(0)
	g.failEvery.Store(0)
}

// Injected returns how many transactions were failed on purpose.
func (g *FaultyGateway) Injected() int64 {
	return g.injected.Load()
}

func (g *FaultyGateway) WithinTx(ctx context.Context, fn func(ctx context.Context, tx market.Tx) error) error {
	if d := time.Duration(g.latency.Load()); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	call := g.calls.Add(1)
	if n := g.failEvery.Load(); n > 0 && call%n == 0 {
		g.injected.Add(1)
		return ErrInjected
	}
	return g.inner.WithinTx(ctx, fn)
}

// FlakySink is a notification sink that can be switched off.
type FlakySink struct {
	inner     market.NotificationSink
	down      atomic.Bool
	dropped   atomic.Int64
	delivered atomic.Int64
}

// NewFlakySink wraps inner. A nil inner swallows every notification.
func NewFlakySink(inner market.NotificationSink) *FlakySink {
	return &FlakySink{inner: inner}
}

func (s *FlakySink) SetDown(down bool) {
	s.down.Store(down)
}

func (s *FlakySink) Dropped() int64   { return s.dropped.Load() }
func (s *FlakySink) Delivered() int64 { return s.delivered.Load() }

func (s *FlakySink) Notify(ctx context.Context, n market.Notification) error {
	if s.down.Load() {
		s.dropped.Add(1)
		return ErrInjected
	}
	if s.inner != nil {
		if err := s.inner.Notify(ctx, n); err != nil {
			return err
		}
	}
	s.delivered.Add(1)
	return nil
}

// Directory is an allow-list of users known to the exchange.
type Directory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]struct{}
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[uuid.UUID]struct{})}
}

func (d *Directory) Add(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = struct{}{}
}

func (d *Directory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[id]
	return ok, nil
}
