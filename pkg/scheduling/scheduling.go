package scheduling

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
)

// Job represents a unit of work admitted by a Scheduler.
type Job interface {
	// Execute runs the job. ctx is canceled when the scheduler is canceled;
	// jobs that want to stop early must observe it.
	Execute(ctx context.Context) error
}

// JobFunc is a function type that implements the Job interface.
type JobFunc func(ctx context.Context) error

// Execute implements the Job interface for JobFunc.
func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler admits and runs jobs with bounded concurrency.
type Scheduler interface {
	// Submit queues a job. It fails with errors.ErrInvalidState after Close.
	// A job submitted after Cancel is accepted and skipped.
	Submit(job Job) error

	// Close marks the backlog closed. No more submissions are possible
	// afterwards. Close is idempotent.
	Close()

	// Cancel requests cancellation. Queued jobs are skipped, running jobs see
	// their context canceled but are not aborted. Cancel is idempotent and
	// safe from any goroutine.
	Cancel()

	// Canceled reports whether Cancel has been called or the parent
	// context is done.
	Canceled() bool

	// CurrentConcurrencyLevel returns the number of jobs running right now.
	// The value is instantaneous and best-effort.
	CurrentConcurrencyLevel() int

	// MaxConcurrency returns the admission limit.
	MaxConcurrency() int

	// Completed is closed exactly once, after Close has been called and the
	// last admitted job has finished.
	Completed() <-chan struct{}
}

// Strategy names a Scheduler implementation.
type Strategy string

const (
	// StrategyDispatcher selects the semaphore-gated dispatcher.
	StrategyDispatcher Strategy = "dispatcher"

	// StrategyElastic selects the self-scaling lock-free scheduler.
	StrategyElastic Strategy = "elastic"
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	return string(s)
}

// Config holds configuration options shared by the Scheduler implementations.
type Config struct {
	// MaxConcurrency is the maximum number of jobs running at once.
	// Must be greater than 0.
	MaxConcurrency int

	// Name labels log entries and metrics. Defaults to "scheduler".
	Name string

	// Context is the parent of the context handed to jobs. Once it is done
	// the scheduler counts as canceled. Defaults to context.Background().
	Context context.Context

	// OnJobError receives every error returned by a job and every recovered
	// panic. It is called on the job's goroutine and must be safe for
	// concurrent use.
	OnJobError func(err error)

	// Logger receives debug-level lifecycle entries. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics, if not nil, records job and admission metrics.
	Metrics *metrics.Registry
}

// Validate checks the configuration for the named module.
func (c Config) Validate(module string) error {
	return validation.ValidatePositive(module, "max_concurrency", c.MaxConcurrency)
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Name == "" {
		c.Name = "scheduler"
	}
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Run executes job, converting a panic into a *errors.PanicError. It is the
// job boundary used by every Scheduler implementation.
func Run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &pcerrors.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Execute(ctx)
}

// ErrClosed builds the error returned by Submit after Close.
func ErrClosed(module string) error {
	return pcerrors.NewOperationError(module, "Submit", fmt.Errorf("backlog is closed: %w", pcerrors.ErrInvalidState))
}
