/*
Package psconcurrent runs batches of jobs concurrently while keeping their
console output readable.

Batches (pkg/batch):
  - Coordinator: bounded concurrency, first-error cancellation, error aggregation
  - Worker: per-job context, console and result hand-off

Scheduling (pkg/scheduling):
  - dispatcher: single dispatch goroutine admitting jobs through a slot pool
  - elastic: lock-free queue drained by at most MaxConcurrency dispatchers,
    with cancellable handles and inline execution
  - slots: context-aware admission permits

Console (pkg/console):
  - Multiplexer: per-worker headers, forced line breaks, continuation markers
  - TerminalUI: colored terminal rendering with prompts and secure reads
  - Recorder: in-memory UI for tests
  - mirror: publishes multiplexed lines to a Redis stream

Event loop (pkg/eventloop):
  - Loop: single-owner callback queue with synchronous and posted invocation

Example usage:

	import (
		"github.com/sharpjs/PSConcurrent/pkg/batch"
		"github.com/sharpjs/PSConcurrent/pkg/console"
	)

	c, _ := batch.New(batch.Config{
		MaxConcurrency: 4,
		UI:             console.NewTerminalUI(os.Stdout, os.Stdin),
	})
	_ = c.Start()
	c.Submit(batch.JobFunc(func(w *batch.Worker) error {
		w.UI().WriteLine("hello")
		return w.Emit(42)
	}))
	err := c.Wait()

The psconcurrent command (cmd/psconcurrent) runs shell commands as a batch.
*/
package psconcurrent
