package elastic

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sharpjs/PSConcurrent/internal/testutil"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling/schedulertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConformance(t *testing.T) {
	schedulertest.Run(t, func(config scheduling.Config) (scheduling.Scheduler, error) {
		s, err := New(config)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

func TestIdleHasNoDispatchers(t *testing.T) {
	s, err := New(scheduling.Config{MaxConcurrency: 4})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, s.Dispatchers(), 0)

	for i := 0; i < 10; i++ {
		testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error { return nil })))
	}
	testutil.Eventually(t, func() bool { return s.Dispatchers() == 0 }, time.Second, time.Millisecond)

	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")
}

func TestDispatchersNeverExceedLimit(t *testing.T) {
	s, err := New(scheduling.Config{MaxConcurrency: 3})
	testutil.AssertNoError(t, err)

	var peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Submit(scheduling.JobFunc(func(context.Context) error {
					n := int32(s.Dispatchers())
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					return nil
				}))
			}
		}()
	}
	wg.Wait()
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")

	if peak.Load() > 3 {
		t.Errorf("observed %d dispatchers, limit is 3", peak.Load())
	}
}

func TestHandleRemove(t *testing.T) {
	s, err := New(scheduling.Config{MaxConcurrency: 1})
	testutil.AssertNoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
		close(started)
		<-release
		return nil
	})))
	<-started

	var ran atomic.Bool
	h, err := s.SubmitHandle(scheduling.JobFunc(func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, h.Remove(), true)
	testutil.AssertEqual(t, h.Remove(), false)
	testutil.WaitClosed(t, h.Done(), "removed job")

	close(release)
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")
	testutil.AssertEqual(t, ran.Load(), false)
}

func TestHandleRunInlineOutsideDispatcher(t *testing.T) {
	s, err := New(scheduling.Config{MaxConcurrency: 1})
	testutil.AssertNoError(t, err)

	h, err := s.SubmitHandle(scheduling.JobFunc(func(context.Context) error { return nil }))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, h.RunInline(), false)

	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")
	testutil.WaitClosed(t, h.Done(), "job")
}

func TestHandleRunInlineOnDispatcher(t *testing.T) {
	s, err := New(scheduling.Config{MaxConcurrency: 1})
	testutil.AssertNoError(t, err)

	var innerRuns atomic.Int32
	var inlined atomic.Bool
	submitted := make(chan error, 1)
	testutil.AssertNoError(t, s.Submit(scheduling.JobFunc(func(context.Context) error {
		// The only dispatcher is busy here, so the inner job is still queued.
		h, err := s.SubmitHandle(scheduling.JobFunc(func(context.Context) error {
			innerRuns.Add(1)
			return nil
		}))
		submitted <- err
		if err != nil {
			return err
		}
		inlined.Store(h.RunInline())
		<-h.Done()
		return nil
	})))

	// Close only after the nested submission, which Close would reject.
	testutil.AssertNoError(t, <-submitted)
	s.Close()
	testutil.WaitClosed(t, s.Completed(), "completion")
	testutil.AssertEqual(t, inlined.Load(), true)
	testutil.AssertEqual(t, innerRuns.Load(), int32(1))
}

func TestHandleRunInlineOtherScheduler(t *testing.T) {
	a, err := New(scheduling.Config{MaxConcurrency: 1})
	testutil.AssertNoError(t, err)
	b, err := New(scheduling.Config{MaxConcurrency: 1})
	testutil.AssertNoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	testutil.AssertNoError(t, b.Submit(scheduling.JobFunc(func(context.Context) error {
		close(started)
		<-release
		return nil
	})))
	<-started
	h, err := b.SubmitHandle(scheduling.JobFunc(func(context.Context) error { return nil }))
	testutil.AssertNoError(t, err)

	result := make(chan bool, 1)
	testutil.AssertNoError(t, a.Submit(scheduling.JobFunc(func(context.Context) error {
		result <- h.RunInline()
		return nil
	})))
	testutil.AssertEqual(t, <-result, false)

	close(release)
	a.Close()
	b.Close()
	testutil.WaitClosed(t, a.Completed(), "completion of a")
	testutil.WaitClosed(t, b.Completed(), "completion of b")
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	testutil.AssertEqual(t, q.empty(), true)
	if q.dequeue() != nil {
		t.Fatal("dequeue on empty queue should return nil")
	}

	entries := make([]*entry, 5)
	for i := range entries {
		entries[i] = newEntry(nil)
		q.enqueue(entries[i])
	}
	testutil.AssertEqual(t, q.len(), 5)
	for i := range entries {
		if got := q.dequeue(); got != entries[i] {
			t.Fatalf("dequeue %d returned the wrong entry", i)
		}
	}
	testutil.AssertEqual(t, q.empty(), true)
	testutil.AssertEqual(t, q.len(), 0)
}

func TestQueueConcurrent(t *testing.T) {
	q := newQueue()
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.enqueue(newEntry(nil))
			}
		}()
	}

	var got atomic.Int32
	var consumers sync.WaitGroup
	done := make(chan struct{})
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				if q.dequeue() != nil {
					got.Add(1)
					continue
				}
				select {
				case <-done:
					for q.dequeue() != nil {
						got.Add(1)
					}
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	consumers.Wait()
	testutil.AssertEqual(t, int(got.Load()), producers*perProducer)
}

func BenchmarkElastic(b *testing.B) {
	s, err := New(scheduling.Config{MaxConcurrency: 8})
	if err != nil {
		b.Fatal(err)
	}
	job := scheduling.JobFunc(func(context.Context) error { return nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Submit(job); err != nil {
			b.Fatal(err)
		}
	}
	s.Close()
	<-s.Completed()
}
