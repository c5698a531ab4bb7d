package eventloop

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.uber.org/zap"

	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
)

const module = "eventloop"

// request is a queued callback. done is nil for posted callbacks.
type request struct {
	fn   func()
	done chan struct{}
}

// Loop is a FIFO callback queue consumed by exactly one owner goroutine.
type Loop struct {
	name    string
	log     *zap.Logger
	metrics *metrics.Registry

	mu     sync.Mutex
	queue  []request
	closed bool
	wake   chan struct{}

	started atomic.Bool
	owner   atomic.Int64 // goroutine id; 0 until RunLoop is called
}

// New creates a loop with no owner.
func New(opts ...Option) *Loop {
	l := &Loop{
		name: "loop",
		log:  zap.NewNop(),
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(zap.String("loop", l.name))
	return l
}

// RunLoop makes the calling goroutine the owner and runs queued callbacks
// until Complete has been called and the queue is empty. It may be called
// only once.
func (l *Loop) RunLoop() error {
	if !l.started.CompareAndSwap(false, true) {
		return pcerrors.NewOperationError(module, "RunLoop", fmt.Errorf("already running: %w", pcerrors.ErrInvalidState))
	}
	l.owner.Store(goid.Get())
	l.log.Debug("loop started")

	for {
		batch, closed := l.drain()
		for _, req := range batch {
			l.execute(req)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			l.log.Debug("loop completed")
			return nil
		}
		<-l.wake
	}
}

// InvokeSynchronously runs fn on the owner goroutine and blocks until it has
// returned. A panic in fn is recovered and logged, not propagated.
func (l *Loop) InvokeSynchronously(fn func()) error {
	if l.IsOwner() {
		return pcerrors.NewOperationError(module, "InvokeSynchronously",
			fmt.Errorf("called from the loop owner: %w", pcerrors.ErrInvalidUsage))
	}

	done := make(chan struct{})
	if err := l.enqueue(request{fn: fn, done: done}, "InvokeSynchronously"); err != nil {
		return err
	}
	l.metrics.LoopInvoked("sync")

	<-done
	return nil
}

// Post queues fn to run on the owner goroutine and returns immediately.
// Post is safe to call from the owner itself.
func (l *Loop) Post(fn func()) error {
	if err := l.enqueue(request{fn: fn}, "Post"); err != nil {
		return err
	}
	l.metrics.LoopInvoked("post")
	return nil
}

// Complete closes the queue. RunLoop returns once the queue drains.
// Complete is idempotent.
func (l *Loop) Complete() {
	l.mu.Lock()
	first := !l.closed
	l.closed = true
	l.mu.Unlock()

	if first {
		l.log.Debug("loop closed")
	}
	l.signal()
}

// IsOwner reports whether the calling goroutine is running RunLoop.
func (l *Loop) IsOwner() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == goid.Get()
}

// Completed reports whether Complete has been called.
func (l *Loop) Completed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) enqueue(req request, op string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return pcerrors.NewOperationError(module, op, pcerrors.ErrLoopEnded)
	}
	l.queue = append(l.queue, req)
	l.metrics.SetLoopQueueDepth(l.name, len(l.queue))
	l.mu.Unlock()

	l.signal()
	return nil
}

// drain takes every queued request at once.
func (l *Loop) drain() ([]request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil
	if len(batch) > 0 {
		l.metrics.SetLoopQueueDepth(l.name, 0)
	}
	return batch, l.closed
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) execute(req request) {
	if req.done != nil {
		defer close(req.done)
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("callback panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	req.fn()
}
