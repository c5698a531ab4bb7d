package elastic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

const module = "elastic"

// Scheduler implements scheduling.Scheduler with on-demand dispatcher
// goroutines, at most MaxConcurrency of them at a time.
type Scheduler struct {
	config scheduling.Config
	log    *zap.Logger
	queue  *queue

	ctx      context.Context
	cancel   context.CancelFunc
	canceled atomic.Bool
	closed   atomic.Bool

	// pending counts submitted jobs that have not finished, run or not.
	pending     atomic.Int64
	inFlight    atomic.Int32
	dispatchers atomic.Int32
	goroutines  sync.Map // goroutine id -> struct{}

	completeOnce sync.Once
	completed    chan struct{}
}

var _ scheduling.Scheduler = (*Scheduler)(nil)

// New creates an idle elastic scheduler.
func New(config scheduling.Config) (*Scheduler, error) {
	if err := config.Validate(module); err != nil {
		return nil, err
	}
	config = config.WithDefaults()

	ctx, cancel := context.WithCancel(config.Context)
	return &Scheduler{
		config:    config,
		log:       config.Logger.With(zap.String("scheduler", config.Name), zap.String("strategy", "elastic")),
		queue:     newQueue(),
		ctx:       ctx,
		cancel:    cancel,
		completed: make(chan struct{}),
	}, nil
}

// Submit queues a job.
func (s *Scheduler) Submit(job scheduling.Job) error {
	_, err := s.SubmitHandle(job)
	return err
}

// SubmitHandle queues a job and returns a handle to it.
func (s *Scheduler) SubmitHandle(job scheduling.Job) (*Handle, error) {
	if err := validation.ValidateNotNil(module, "job", job); err != nil {
		return nil, err
	}

	// Count the job before checking closed so Close cannot observe an empty
	// scheduler while this submission is in progress.
	s.pending.Add(1)
	if s.closed.Load() {
		s.release()
		return nil, scheduling.ErrClosed(module)
	}

	e := newEntry(job)
	s.queue.enqueue(e)
	s.config.Metrics.JobSubmitted(s.config.Name)
	s.config.Metrics.SetQueued(s.config.Name, s.queue.len())

	s.spawn()
	return &Handle{s: s, e: e}, nil
}

// Close marks the scheduler closed. Completed fires once pending jobs drain.
func (s *Scheduler) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.log.Debug("backlog closed", zap.Int("queued", s.queue.len()))
	}
	s.tryComplete()
}

// Cancel sets the cancellation signal and cancels the job context.
func (s *Scheduler) Cancel() {
	if s.canceled.CompareAndSwap(false, true) {
		s.log.Debug("cancellation requested", zap.Int32("in_flight", s.inFlight.Load()))
	}
	s.cancel()
}

// Canceled reports whether Cancel has been called or the parent context is done.
func (s *Scheduler) Canceled() bool {
	return s.canceled.Load() || s.config.Context.Err() != nil
}

// CurrentConcurrencyLevel returns the number of jobs running on dispatchers.
// Jobs run through Handle.RunInline are not counted; they borrow the
// dispatcher of the job that ran them.
func (s *Scheduler) CurrentConcurrencyLevel() int {
	return int(s.inFlight.Load())
}

// MaxConcurrency returns the admission limit.
func (s *Scheduler) MaxConcurrency() int {
	return s.config.MaxConcurrency
}

// Completed is closed after Close once every submitted job has finished.
func (s *Scheduler) Completed() <-chan struct{} {
	return s.completed
}

// QueueSize returns the approximate number of queued entries, including
// entries already removed or run inline but not yet dequeued.
func (s *Scheduler) QueueSize() int {
	return s.queue.len()
}

// Dispatchers returns the number of live dispatcher goroutines.
func (s *Scheduler) Dispatchers() int {
	return int(s.dispatchers.Load())
}

// spawn starts a dispatcher if fewer than MaxConcurrency exist.
func (s *Scheduler) spawn() {
	if s.reserve() {
		s.config.Metrics.DispatcherSpawned(s.config.Name)
		go s.dispatch()
	}
}

func (s *Scheduler) reserve() bool {
	for {
		n := s.dispatchers.Load()
		if int(n) >= s.config.MaxConcurrency {
			return false
		}
		if s.dispatchers.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *Scheduler) dispatch() {
	id := goid.Get()
	s.goroutines.Store(id, struct{}{})
	defer s.goroutines.Delete(id)

	for {
		e := s.queue.dequeue()
		if e == nil {
			s.dispatchers.Add(-1)
			// A submission may have raced with the decrement and found no
			// room for a new dispatcher.
			if s.queue.empty() || !s.reserve() {
				return
			}
			continue
		}
		s.config.Metrics.SetQueued(s.config.Name, s.queue.len())

		if e.take() {
			s.execute(e, false)
		}
	}
}

func (s *Scheduler) onDispatcher() bool {
	_, ok := s.goroutines.Load(goid.Get())
	return ok
}

// execute runs or skips a taken entry and finishes it.
func (s *Scheduler) execute(e *entry, inline bool) {
	defer s.finish(e)

	if s.Canceled() {
		s.config.Metrics.JobSkipped(s.config.Name)
		return
	}

	if !inline {
		n := s.inFlight.Add(1)
		s.config.Metrics.SetInFlight(s.config.Name, int(n))
	}
	s.config.Metrics.JobStarted(s.config.Name)

	start := time.Now()
	err := scheduling.Run(s.ctx, e.job)

	if !inline {
		n := s.inFlight.Add(-1)
		s.config.Metrics.SetInFlight(s.config.Name, int(n))
	}
	s.config.Metrics.JobFinished(s.config.Name, time.Since(start), err)

	if err != nil {
		s.log.Debug("job failed", zap.Error(err), zap.Bool("inline", inline))
		if s.config.OnJobError != nil {
			s.config.OnJobError(err)
		}
	}
}

func (s *Scheduler) finish(e *entry) {
	close(e.done)
	s.release()
}

func (s *Scheduler) release() {
	if s.pending.Add(-1) == 0 {
		s.tryComplete()
	}
}

func (s *Scheduler) tryComplete() {
	if !s.closed.Load() || s.pending.Load() != 0 {
		return
	}
	s.completeOnce.Do(func() {
		s.cancel()
		s.log.Debug("scheduler completed")
		close(s.completed)
	})
}
