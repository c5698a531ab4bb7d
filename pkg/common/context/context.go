// Package context holds small helpers around the standard context package used
// for the engine's cooperative cancellation.
package context

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// WithSignal returns a child context that is canceled when the process receives
// an interrupt or terminate signal, or when the parent is done. onSignal, if not
// nil, runs once on the first signal before the context is canceled.
func WithSignal(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ctx.Done():
		case sig := <-ch:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		}
	}()

	return ctx, cancel
}
