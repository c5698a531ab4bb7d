// Package slots provides counting admission permits with exactly-once release.
//
// A Pool hands out at most Capacity live Slots. Each Slot must be released
// exactly once; releasing a Slot twice panics, as does releasing more permits
// than were acquired.
package slots

import (
	"context"
	"sync"
	"sync/atomic"

	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
)

// Pool controls the number of live admission slots.
type Pool struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []waiter
}

// waiter represents a goroutine blocked in Acquire.
type waiter struct {
	ready chan struct{} // closed when a permit was handed over
}

// Slot is a single admission ticket.
type Slot struct {
	pool     *Pool
	released atomic.Bool
}

// New creates a pool with the given capacity.
func New(capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, pcerrors.NewValidationError("slots", "capacity", capacity, "capacity must be positive").
			WithHint("capacity determines how many jobs may run at once")
	}
	return &Pool{capacity: capacity}, nil
}

// TryAcquire takes a slot if one is free without blocking.
func (p *Pool) TryAcquire() (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse < p.capacity && len(p.waiters) == 0 {
		p.inUse++
		return &Slot{pool: p}, true
	}
	return nil, false
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.Lock()

	// Fast path: permit available and nobody queued ahead of us
	if p.inUse < p.capacity && len(p.waiters) == 0 {
		p.inUse++
		p.mu.Unlock()
		return &Slot{pool: p}, nil
	}

	ready := make(chan struct{})
	p.waiters = append(p.waiters, waiter{ready: ready})
	p.mu.Unlock()

	select {
	case <-ready:
		return &Slot{pool: p}, nil
	case <-ctx.Done():
		if p.removeWaiter(ready) {
			return nil, ctx.Err()
		}
		// The permit was handed over concurrently with cancellation; give it back.
		<-ready
		p.release()
		return nil, ctx.Err()
	}
}

// Release returns the slot to its pool. It panics if called twice.
func (s *Slot) Release() {
	if !s.released.CompareAndSwap(false, true) {
		panic("slots: slot released twice")
	}
	s.pool.release()
}

// Released reports whether Release has been called.
func (s *Slot) Released() bool {
	return s.released.Load()
}

// Capacity returns the maximum number of live slots.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// InUse returns the number of live slots.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Available returns the number of slots that could be acquired right now.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity - p.inUse
}

// Waiting returns the number of goroutines blocked in Acquire.
func (p *Pool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

func (p *Pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse <= 0 {
		panic("slots: released more permits than acquired")
	}
	p.inUse--
	p.notifyWaiters()
}

// notifyWaiters hands free permits to waiters in FIFO order.
// Must be called with p.mu held.
func (p *Pool) notifyWaiters() {
	for len(p.waiters) > 0 && p.inUse < p.capacity {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]

		// A waiter whose context is already done still gets the permit and
		// releases it again from Acquire.
		p.inUse++
		close(w.ready)
	}
}

// removeWaiter removes a waiter from the waiters list. It reports false when
// the waiter was no longer queued, meaning a permit was or will be handed to it.
func (p *Pool) removeWaiter(ready chan struct{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, w := range p.waiters {
		if w.ready == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}
