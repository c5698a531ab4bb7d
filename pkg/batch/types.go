package batch

import (
	"context"
	"fmt"

	"github.com/sharpjs/PSConcurrent/pkg/console"
)

// WorkerID identifies a job within its batch. Automatic ids start at 1.
type WorkerID int

// OutputItem is one value emitted by a job.
type OutputItem struct {
	WorkerID WorkerID
	Value    any
}

// Job is a unit of work run by a Coordinator.
type Job interface {
	Run(w *Worker) error
}

// JobFunc is a function type that implements the Job interface.
type JobFunc func(w *Worker) error

// Run implements the Job interface for JobFunc.
func (f JobFunc) Run(w *Worker) error {
	return f(w)
}

// State is the lifecycle state of a Coordinator.
type State int32

// Coordinator states.
const (
	Idle State = iota
	Submitting
	Draining
	Completed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Draining:
		return "draining"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Worker is the view of the batch handed to a running job.
type Worker struct {
	c   *Coordinator
	id  WorkerID
	ctx context.Context
	ui  *console.WorkerUI
}

// ID returns the worker id.
func (w *Worker) ID() WorkerID {
	return w.id
}

// Context is canceled when the batch is canceled.
func (w *Worker) Context() context.Context {
	return w.ctx
}

// UI returns the worker's multiplexed console.
func (w *Worker) UI() console.UI {
	return w.ui
}

// SetHeader replaces the header of the worker's console lines.
func (w *Worker) SetHeader(header string) error {
	return w.ui.SetHeader(header)
}

// Emit delivers v to the host and blocks until the host has received it.
func (w *Worker) Emit(v any) error {
	item := OutputItem{WorkerID: w.id, Value: v}
	return w.c.loop.InvokeSynchronously(func() { w.c.deliver(item) })
}

// EmitAsync queues v for delivery to the host and returns at once. Items
// queued this way are still delivered before Wait returns.
func (w *Worker) EmitAsync(v any) error {
	item := OutputItem{WorkerID: w.id, Value: v}
	return w.c.loop.Post(func() { w.c.deliver(item) })
}
