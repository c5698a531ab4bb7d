package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/eventloop"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling/dispatcher"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling/elastic"
)

const module = "batch"

// Coordinator runs one batch of jobs. A Coordinator is not reusable: once
// Completed, create a new one for the next batch.
type Coordinator struct {
	config Config
	id     string
	log    *zap.Logger

	mu     sync.Mutex
	state  State
	nextID WorkerID
	sched  scheduling.Scheduler
	loop   *eventloop.Loop
	mux    *console.Multiplexer
	items  []OutputItem

	ctx      context.Context
	cancel   context.CancelFunc
	canceled atomic.Bool

	errs    pcerrors.Collector
	started time.Time
}

// New creates an idle coordinator.
func New(config Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		config: config,
		id:     id,
		log:    config.Logger.With(zap.String("batch_id", id)),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// ID returns the batch id, a random UUID.
func (c *Coordinator) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Canceled reports whether the batch has been canceled.
func (c *Coordinator) Canceled() bool {
	return c.canceled.Load()
}

// Console returns the batch's console multiplexer, or nil before Start.
func (c *Coordinator) Console() *console.Multiplexer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mux
}

// Items returns the emitted items when Config.Output is nil. It is meant to
// be called after Wait.
func (c *Coordinator) Items() []OutputItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]OutputItem, len(c.items))
	copy(out, c.items)
	return out
}

// Start moves the coordinator from Idle to Submitting.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return c.stateError("Start")
	}

	sched, err := newScheduler(c.config.Strategy, scheduling.Config{
		MaxConcurrency: c.config.MaxConcurrency,
		Name:           c.config.Name,
		Context:        c.ctx,
		Logger:         c.log,
		Metrics:        c.config.Metrics,
	})
	if err != nil {
		return err
	}
	if c.canceled.Load() {
		sched.Cancel()
	}

	c.sched = sched
	c.loop = eventloop.New(
		eventloop.WithLogger(c.log),
		eventloop.WithMetrics(c.config.Metrics),
		eventloop.WithName(c.config.Name),
	)
	c.mux = console.New(c.config.UI,
		console.WithLogger(c.log),
		console.WithMetrics(c.config.Metrics, c.config.Name),
	)
	c.state = Submitting
	c.started = time.Now()

	// The loop ends once the scheduler has run or skipped every job.
	go func() {
		<-sched.Completed()
		c.loop.Complete()
	}()

	c.log.Debug("batch started",
		zap.Int("max_concurrency", c.config.MaxConcurrency),
		zap.Stringer("strategy", c.config.Strategy),
	)
	return nil
}

// Submit queues job under the next automatic worker id. After Cancel the
// job is dropped and Submit returns (0, nil).
func (c *Coordinator) Submit(job Job) (WorkerID, error) {
	return c.submit(0, job, "Submit")
}

// SubmitAs queues job under an explicit worker id, which must be positive.
// Later automatic ids continue after the highest id seen.
func (c *Coordinator) SubmitAs(id WorkerID, job Job) (WorkerID, error) {
	if id <= 0 {
		return 0, pcerrors.NewArgumentError(module, "worker_id", id, "must be positive")
	}
	return c.submit(id, job, "SubmitAs")
}

func (c *Coordinator) submit(id WorkerID, job Job, op string) (WorkerID, error) {
	if job == nil {
		return 0, pcerrors.NewArgumentError(module, "job", nil, "cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Submitting {
		return 0, c.stateError(op)
	}
	if c.canceled.Load() {
		c.log.Debug("submission dropped after cancel")
		c.config.Metrics.JobSkipped(c.config.Name)
		return 0, nil
	}

	if id == 0 {
		id = c.nextID + 1
	}
	if id > c.nextID {
		c.nextID = id
	}

	if err := c.sched.Submit(c.wrap(id, job)); err != nil {
		return 0, err
	}
	return id, nil
}

// wrap adapts job to the scheduler. Errors are reported and collected here,
// where the worker id is known.
func (c *Coordinator) wrap(id WorkerID, job Job) scheduling.Job {
	return scheduling.JobFunc(func(ctx context.Context) error {
		w := &Worker{c: c, id: id, ctx: ctx, ui: c.mux.ForWorker(int(id))}
		err := scheduling.Run(ctx, scheduling.JobFunc(func(context.Context) error {
			return job.Run(w)
		}))
		if err != nil {
			c.jobFailed(w, err)
		}
		return err
	})
}

func (c *Coordinator) jobFailed(w *Worker, err error) {
	log := c.log.With(zap.Int("worker_id", int(w.id)))

	if c.canceled.Load() && errors.Is(err, context.Canceled) {
		log.Debug("job observed cancellation", zap.Error(err))
		return
	}

	if *c.config.ReportJobErrors {
		for _, leaf := range pcerrors.Flatten(err) {
			w.ui.WriteErrorLine(leaf.Error())
		}
	}

	if c.errs.Add(err) {
		log.Info("job failed, canceling batch", zap.Error(err))
		c.Cancel()
		return
	}
	log.Debug("job failed", zap.Error(err))
}

// Cancel requests cancellation of the batch. Jobs not yet started are
// skipped; running jobs see Worker.Context canceled. Cancel is idempotent
// and safe from any goroutine.
func (c *Coordinator) Cancel() {
	if !c.canceled.CompareAndSwap(false, true) {
		return
	}
	c.log.Debug("batch canceled")
	c.cancel()

	c.mu.Lock()
	sched := c.sched
	c.mu.Unlock()
	if sched != nil {
		sched.Cancel()
	}
}

// Wait ends submission, runs the event loop on the calling goroutine until
// every job has finished, and returns the batch error.
func (c *Coordinator) Wait() error {
	c.mu.Lock()
	if c.state != Submitting {
		err := c.stateError("Wait")
		c.mu.Unlock()
		return err
	}
	c.state = Draining
	sched, loop := c.sched, c.loop
	c.mu.Unlock()

	c.log.Debug("batch draining")
	sched.Close()
	if err := loop.RunLoop(); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = Completed
	c.mu.Unlock()
	c.cancel()

	err := c.errs.Err()
	c.finish(err)
	return err
}

func (c *Coordinator) finish(err error) {
	outcome := "succeeded"
	switch {
	case err != nil:
		outcome = "failed"
	case c.canceled.Load():
		outcome = "canceled"
	}
	d := time.Since(c.started)
	c.config.Metrics.BatchFinished(outcome, d)
	c.log.Debug("batch completed",
		zap.String("outcome", outcome),
		zap.Duration("duration", d),
		zap.Int("errors", c.errs.Len()),
	)
}

// deliver runs on the loop owner.
func (c *Coordinator) deliver(item OutputItem) {
	c.config.Metrics.OutputDelivered(c.config.Name)
	if c.config.Output != nil {
		c.config.Output(item)
		return
	}
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}

func (c *Coordinator) stateError(op string) error {
	return pcerrors.NewOperationError(module, op,
		fmt.Errorf("coordinator is %s: %w", c.state, pcerrors.ErrInvalidState))
}

func newScheduler(strategy scheduling.Strategy, config scheduling.Config) (scheduling.Scheduler, error) {
	switch strategy {
	case scheduling.StrategyElastic:
		s, err := elastic.New(config)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		d, err := dispatcher.New(config)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
