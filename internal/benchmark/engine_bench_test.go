package benchmark

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sharpjs/PSConcurrent/pkg/batch"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/eventloop"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling/dispatcher"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling/elastic"
)

var strategies = []struct {
	name string
	new  func(scheduling.Config) (scheduling.Scheduler, error)
}{
	{"dispatcher", func(c scheduling.Config) (scheduling.Scheduler, error) { return dispatcher.New(c) }},
	{"elastic", func(c scheduling.Config) (scheduling.Scheduler, error) { return elastic.New(c) }},
}

var noop = scheduling.JobFunc(func(context.Context) error { return nil })

// BenchmarkSchedulerThroughput submits b.N empty jobs and waits for all of them.
func BenchmarkSchedulerThroughput(b *testing.B) {
	for _, strategy := range strategies {
		for _, n := range []int{1, 4, 16} {
			b.Run(fmt.Sprintf("%s/%dslots", strategy.name, n), func(b *testing.B) {
				s, err := strategy.new(scheduling.Config{MaxConcurrency: n})
				if err != nil {
					b.Fatalf("failed to create scheduler: %v", err)
				}

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					_ = s.Submit(noop)
				}
				s.Close()
				<-s.Completed()
			})
		}
	}
}

// BenchmarkSchedulerConcurrentSubmit measures submission from many goroutines.
func BenchmarkSchedulerConcurrentSubmit(b *testing.B) {
	for _, strategy := range strategies {
		b.Run(strategy.name, func(b *testing.B) {
			s, err := strategy.new(scheduling.Config{MaxConcurrency: 4})
			if err != nil {
				b.Fatalf("failed to create scheduler: %v", err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					_ = s.Submit(noop)
				}
			})
			s.Close()
			<-s.Completed()
		})
	}
}

// BenchmarkLoopInvoke compares blocking and posted hand-offs to the loop owner.
func BenchmarkLoopInvoke(b *testing.B) {
	modes := []struct {
		name   string
		invoke func(*eventloop.Loop, func()) error
	}{
		{"sync", (*eventloop.Loop).InvokeSynchronously},
		{"post", (*eventloop.Loop).Post},
	}

	for _, mode := range modes {
		b.Run(mode.name, func(b *testing.B) {
			loop := eventloop.New()
			done := make(chan error, 1)
			go func() { done <- loop.RunLoop() }()

			fn := func() {}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = mode.invoke(loop, fn)
			}
			loop.Complete()
			if err := <-done; err != nil {
				b.Fatalf("loop failed: %v", err)
			}
		})
	}
}

// BenchmarkMultiplexerWriteLine measures contended line writes from workers.
func BenchmarkMultiplexerWriteLine(b *testing.B) {
	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("%dworkers", workers), func(b *testing.B) {
			mux := console.New(console.NewTerminalUI(io.Discard, strings.NewReader(""), console.WithNoColor()))

			per := b.N/workers + 1
			var wg sync.WaitGroup
			b.ReportAllocs()
			b.ResetTimer()
			for w := 1; w <= workers; w++ {
				wg.Add(1)
				go func(ui *console.WorkerUI) {
					defer wg.Done()
					for i := 0; i < per; i++ {
						ui.WriteLine("benchmark output line")
					}
				}(mux.ForWorker(w))
			}
			wg.Wait()
		})
	}
}

// BenchmarkBatch runs whole batches of jobs that each emit one value.
func BenchmarkBatch(b *testing.B) {
	for _, strategy := range []scheduling.Strategy{scheduling.StrategyDispatcher, scheduling.StrategyElastic} {
		b.Run(string(strategy), func(b *testing.B) {
			job := batch.JobFunc(func(w *batch.Worker) error {
				return w.Emit(int(w.ID()))
			})

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				c, err := batch.New(batch.Config{
					MaxConcurrency: 4,
					Strategy:       strategy,
					UI:             console.NewRecorder(),
					Output:         func(batch.OutputItem) {},
				})
				if err != nil {
					b.Fatalf("failed to create batch: %v", err)
				}
				if err := c.Start(); err != nil {
					b.Fatalf("failed to start batch: %v", err)
				}
				for j := 0; j < 32; j++ {
					_, _ = c.Submit(job)
				}
				if err := c.Wait(); err != nil {
					b.Fatalf("batch failed: %v", err)
				}
			}
		})
	}
}
