// Package schedulertest provides a conformance suite for scheduling.Scheduler
// implementations.
package schedulertest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharpjs/PSConcurrent/internal/testutil"
	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

// Factory creates a scheduler for one sub-test.
type Factory func(config scheduling.Config) (scheduling.Scheduler, error)

// Run exercises the invariants every Scheduler must hold.
func Run(t *testing.T, newScheduler Factory) {
	t.Run("InvalidConfiguration", func(t *testing.T) { testInvalidConfiguration(t, newScheduler) })
	t.Run("BoundedConcurrency", func(t *testing.T) { testBoundedConcurrency(t, newScheduler) })
	t.Run("SubmitAfterClose", func(t *testing.T) { testSubmitAfterClose(t, newScheduler) })
	t.Run("EmptyCompletes", func(t *testing.T) { testEmptyCompletes(t, newScheduler) })
	t.Run("ErrorsForwarded", func(t *testing.T) { testErrorsForwarded(t, newScheduler) })
	t.Run("PanicsForwarded", func(t *testing.T) { testPanicsForwarded(t, newScheduler) })
	t.Run("CancelSkipsQueued", func(t *testing.T) { testCancelSkipsQueued(t, newScheduler) })
	t.Run("CancelSignalsRunning", func(t *testing.T) { testCancelSignalsRunning(t, newScheduler) })
	t.Run("CompletedWaitsForRunning", func(t *testing.T) { testCompletedWaitsForRunning(t, newScheduler) })
	t.Run("ParentContextCancels", func(t *testing.T) { testParentContextCancels(t, newScheduler) })
}

func mustNew(t *testing.T, newScheduler Factory, config scheduling.Config) scheduling.Scheduler {
	t.Helper()
	s, err := newScheduler(config)
	testutil.AssertNoError(t, err)
	return s
}

func testInvalidConfiguration(t *testing.T, newScheduler Factory) {
	for _, n := range []int{0, -1} {
		s, err := newScheduler(scheduling.Config{MaxConcurrency: n})
		testutil.AssertErrorIs(t, err, pcerrors.ErrInvalidConfiguration)
		if s != nil {
			t.Errorf("MaxConcurrency=%d: expected nil scheduler", n)
		}
	}
}

func testBoundedConcurrency(t *testing.T, newScheduler Factory) {
	for _, n := range []int{1, 2, 5} {
		var tracker testutil.MaxTracker
		var ran atomic.Int32
		var levelViolation atomic.Bool

		s := mustNew(t, newScheduler, scheduling.Config{MaxConcurrency: n})
		jobs := n*4 + 3
		for i := 0; i < jobs; i++ {
			err := s.Submit(scheduling.JobFunc(func(ctx context.Context) error {
				tracker.Enter()
				defer tracker.Leave()
				if s.CurrentConcurrencyLevel() > n {
					levelViolation.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				ran.Add(1)
				return nil
			}))
			testutil.AssertNoError(t, err)
		}
		s.Close()
		testutil.WaitClosed(t, s.Completed(), "completion")

		testutil.AssertEqual(t, int(ran.Load()), jobs)
		if tracker.Max() > int64(n) {
			t.Errorf("N=%d: observed %d concurrent jobs", n, tracker.Max())
		}
		if levelViolation.Load() {
			t.Errorf("N=%d: CurrentConcurrencyLevel exceeded the limit", n)
		}
		testutil.AssertEqual(t, s.CurrentConcurrencyLevel(), 0)
		testutil.AssertEqual(t, s.MaxConcurrency(), n)
	}
}

func testSubmitAfterClose(t *testing.T, newScheduler Factory) {
	s := mustNew(t, newScheduler, scheduling.Config{MaxConcurrency: 1})
	s.Close()
	s.Close() // idempotent

	err := s.Submit(scheduling.JobFunc(func(context.Context) error { return nil }))
	testutil.AssertErrorIs(t, err, pcerrors.ErrInvalidState)
	testutil.WaitClosed(t, s.Completed(), "completion")
}

func testEmptyCompletes(t *testing.T, newScheduler Factory) {
	s := mustNew(t, newScheduler, scheduling.Config{MaxConcurrency: 3})
	select {
	case <-s.Completed():
		t.Fatal("Completed closed before Close")
	case <-time.After(10 * time.Millisecond):
	}
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")
}

func testErrorsForwarded(t *testing.T, newScheduler Factory) {
	var mu sync.Mutex
	var got []error

	s := mustNew(t, newScheduler, scheduling.Config{
		MaxConcurrency: 2,
		OnJobError: func(err error) {
			mu.Lock()
			got = append(got, err)
			mu.Unlock()
		},
	})

	boom := errors.New("boom")
	var after atomic.Bool
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error { return boom })))
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error { return boom })))
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
		after.Store(true)
		return nil
	})))
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")

	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, len(got), 2)
	testutil.AssertErrorIs(t, got[0], boom)
	testutil.AssertEqual(t, after.Load(), true)
}

func testPanicsForwarded(t *testing.T, newScheduler Factory) {
	errs := make(chan error, 1)
	s := mustNew(t, newScheduler, scheduling.Config{
		MaxConcurrency: 1,
		OnJobError:     func(err error) { errs <- err },
	})

	var next atomic.Bool
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error { panic("kaboom") })))
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
		next.Store(true)
		return nil
	})))
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")

	var pe *pcerrors.PanicError
	if err := <-errs; !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	testutil.AssertEqual(t, pe.Value.(string), "kaboom")
	testutil.AssertEqual(t, next.Load(), true)
}

func testCancelSkipsQueued(t *testing.T, newScheduler Factory) {
	var errCount atomic.Int32
	s := mustNew(t, newScheduler, scheduling.Config{
		MaxConcurrency: 1,
		OnJobError:     func(error) { errCount.Add(1) },
	})

	release := make(chan struct{})
	started := make(chan struct{})
	var ran atomic.Int32

	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
		close(started)
		<-release
		ran.Add(1)
		return nil
	})))
	<-started

	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
			ran.Add(1)
			return nil
		})))
	}

	s.Cancel()
	s.Cancel() // idempotent
	testutil.AssertEqual(t, s.Canceled(), true)
	close(release)

	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")

	testutil.AssertEqual(t, ran.Load(), int32(1))
	testutil.AssertEqual(t, errCount.Load(), int32(0))
}

func testCancelSignalsRunning(t *testing.T, newScheduler Factory) {
	s := mustNew(t, newScheduler, scheduling.Config{MaxConcurrency: 2})

	started := make(chan struct{})
	observed := make(chan error, 1)
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
		return nil
	})))
	<-started
	s.Cancel()
	s.Close()

	testutil.WaitClosed(t, s.Completed(), "completion")
	testutil.AssertErrorIs(t, <-observed, context.Canceled)
}

func testCompletedWaitsForRunning(t *testing.T, newScheduler Factory) {
	s := mustNew(t, newScheduler, scheduling.Config{MaxConcurrency: 2})

	release := make(chan struct{})
	started := make(chan struct{})
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
		close(started)
		<-release
		return nil
	})))
	<-started
	s.Close()

	select {
	case <-s.Completed():
		t.Fatal("Completed closed while a job was still running")
	case <-time.After(20 * time.Millisecond):
	}
	testutil.AssertEqual(t, s.CurrentConcurrencyLevel(), 1)

	close(release)
	testutil.WaitClosed(t, s.Completed(), "completion")
}

func testParentContextCancels(t *testing.T, newScheduler Factory) {
	parent, cancel := context.WithCancel(context.Background())
	s := mustNew(t, newScheduler, scheduling.Config{MaxConcurrency: 2, Context: parent})
	testutil.AssertEqual(t, s.Canceled(), false)

	cancel()
	testutil.AssertEqual(t, s.Canceled(), true)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
			ran.Add(1)
			return nil
		})))
	}
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")

	testutil.AssertEqual(t, ran.Load(), int32(0))
	testutil.AssertEqual(t, s.Canceled(), true)
}
