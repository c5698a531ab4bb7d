package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling/slots"
)

const module = "dispatcher"

// Dispatcher implements scheduling.Scheduler with one dispatch goroutine that
// gates every job start on an admission slot.
type Dispatcher struct {
	config scheduling.Config
	log    *zap.Logger

	backlog *backlog
	slots   *slots.Pool

	ctx      context.Context
	cancel   context.CancelFunc
	canceled atomic.Bool

	// State tracking
	inFlight atomic.Int32
	running  sync.WaitGroup

	completed chan struct{}
}

var _ scheduling.Scheduler = (*Dispatcher)(nil)

// New creates a dispatcher and starts its dispatch goroutine. The goroutine
// exits after Close once every admitted job has finished.
func New(config scheduling.Config) (*Dispatcher, error) {
	if err := config.Validate(module); err != nil {
		return nil, err
	}
	config = config.WithDefaults()

	pool, err := slots.New(config.MaxConcurrency)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(config.Context)
	d := &Dispatcher{
		config:    config,
		log:       config.Logger.With(zap.String("scheduler", config.Name), zap.String("strategy", "dispatcher")),
		backlog:   newBacklog(),
		slots:     pool,
		ctx:       ctx,
		cancel:    cancel,
		completed: make(chan struct{}),
	}

	go d.dispatchLoop()

	return d, nil
}

// Submit adds a job to the backlog.
func (d *Dispatcher) Submit(job scheduling.Job) error {
	if err := validation.ValidateNotNil(module, "job", job); err != nil {
		return err
	}
	if !d.backlog.put(job) {
		return scheduling.ErrClosed(module)
	}

	d.config.Metrics.JobSubmitted(d.config.Name)
	d.config.Metrics.SetQueued(d.config.Name, d.backlog.len())
	return nil
}

// Close marks the backlog closed.
func (d *Dispatcher) Close() {
	if d.backlog.close() {
		d.log.Debug("backlog closed", zap.Int("queued", d.backlog.len()))
	}
}

// Cancel sets the cancellation signal and cancels the job context.
func (d *Dispatcher) Cancel() {
	if d.canceled.CompareAndSwap(false, true) {
		d.log.Debug("cancellation requested", zap.Int32("in_flight", d.inFlight.Load()))
	}
	d.cancel()
}

// Canceled reports whether Cancel has been called or the parent context is done.
func (d *Dispatcher) Canceled() bool {
	return d.canceled.Load() || d.config.Context.Err() != nil
}

// CurrentConcurrencyLevel returns the number of jobs running right now.
func (d *Dispatcher) CurrentConcurrencyLevel() int {
	return int(d.inFlight.Load())
}

// MaxConcurrency returns the admission limit.
func (d *Dispatcher) MaxConcurrency() int {
	return d.config.MaxConcurrency
}

// Completed is closed after Close once every admitted job has finished.
func (d *Dispatcher) Completed() <-chan struct{} {
	return d.completed
}

// QueueSize returns the number of jobs waiting in the backlog.
func (d *Dispatcher) QueueSize() int {
	return d.backlog.len()
}

// dispatchLoop is the single consumer of the backlog.
func (d *Dispatcher) dispatchLoop() {
	defer func() {
		d.running.Wait()
		d.cancel()
		d.log.Debug("dispatcher completed")
		close(d.completed)
	}()

	for {
		job, ok := d.backlog.take()
		if !ok {
			return
		}
		d.config.Metrics.SetQueued(d.config.Name, d.backlog.len())

		slot, err := d.slots.Acquire(d.ctx)
		if err != nil {
			// Canceled while waiting for capacity
			d.skip()
			continue
		}
		if d.Canceled() {
			slot.Release()
			d.skip()
			continue
		}

		d.running.Add(1)
		go d.run(job, slot)
	}
}

func (d *Dispatcher) skip() {
	d.config.Metrics.JobSkipped(d.config.Name)
}

// run executes a single job and releases its slot.
func (d *Dispatcher) run(job scheduling.Job, slot *slots.Slot) {
	defer d.running.Done()

	n := d.inFlight.Add(1)
	d.config.Metrics.JobStarted(d.config.Name)
	d.config.Metrics.SetInFlight(d.config.Name, int(n))

	start := time.Now()
	err := scheduling.Run(d.ctx, job)

	n = d.inFlight.Add(-1)
	d.config.Metrics.SetInFlight(d.config.Name, int(n))
	d.config.Metrics.JobFinished(d.config.Name, time.Since(start), err)

	if err != nil {
		d.log.Debug("job failed", zap.Error(err))
		if d.config.OnJobError != nil {
			d.config.OnJobError(err)
		}
	}

	slot.Release()
}
