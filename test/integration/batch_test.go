package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/sharpjs/PSConcurrent/internal/testutil"
	"github.com/sharpjs/PSConcurrent/pkg/batch"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/console/mirror"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

var strategies = []scheduling.Strategy{scheduling.StrategyDispatcher, scheduling.StrategyElastic}

// TestTerminalBatchWithMetrics runs chatty jobs through a real terminal UI and
// checks that every line carries exactly one header and that metrics add up.
func TestTerminalBatchWithMetrics(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			out := testutil.NewMockWriter()
			reg := prometheus.NewRegistry()
			m := metrics.NewRegistry(reg)

			c, err := batch.New(batch.Config{
				MaxConcurrency: 4,
				Strategy:       strategy,
				UI:             console.NewTerminalUI(out, strings.NewReader(""), console.WithNoColor()),
				Metrics:        m,
			})
			testutil.AssertNoError(t, err)
			testutil.AssertNoError(t, c.Start())

			const jobs = 12
			for i := 0; i < jobs; i++ {
				_, err := c.Submit(batch.JobFunc(func(w *batch.Worker) error {
					for part := 0; part < 5; part++ {
						w.UI().Write(fmt.Sprintf("p%d ", part))
					}
					w.UI().WriteLine("end")
					return w.Emit(int(w.ID()))
				}))
				testutil.AssertNoError(t, err)
			}
			testutil.AssertNoError(t, c.Wait())

			testutil.AssertEqual(t, len(c.Items()), jobs)
			for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
				if !strings.HasPrefix(line, "[Task ") {
					t.Errorf("line without header: %q", line)
				}
				if strings.Count(line, "[Task ") != 1 {
					t.Errorf("line with several headers: %q", line)
				}
			}

			testutil.AssertEqual(t, promtest.ToFloat64(m.JobsCompleted.WithLabelValues("batch")), float64(jobs))
			testutil.AssertEqual(t, promtest.ToFloat64(m.OutputItems.WithLabelValues("batch")), float64(jobs))
			testutil.AssertEqual(t, promtest.ToFloat64(m.Batches.WithLabelValues("succeeded")), 1.0)
		})
	}
}

// TestFailureCancelsQueuedJobs checks that after the first failure, queued
// jobs are skipped and running jobs observe cancellation.
func TestFailureCancelsQueuedJobs(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			rec := console.NewRecorder()
			c, err := batch.New(batch.Config{MaxConcurrency: 2, Strategy: strategy, UI: rec})
			testutil.AssertNoError(t, err)
			testutil.AssertNoError(t, c.Start())

			boom := errors.New("boom")
			var started atomic.Int32

			_, _ = c.Submit(batch.JobFunc(func(w *batch.Worker) error {
				started.Add(1)
				<-w.Context().Done()
				return w.Context().Err()
			}))
			_, _ = c.Submit(batch.JobFunc(func(w *batch.Worker) error {
				started.Add(1)
				time.Sleep(20 * time.Millisecond)
				return boom
			}))
			for i := 0; i < 10; i++ {
				_, _ = c.Submit(batch.JobFunc(func(w *batch.Worker) error {
					started.Add(1)
					return nil
				}))
			}

			err = c.Wait()
			testutil.AssertErrorIs(t, err, boom)
			if err != boom {
				t.Errorf("single failure should be returned unwrapped, got %v", err)
			}
			testutil.AssertEqual(t, started.Load(), int32(2))
			if !strings.Contains(rec.String(), "[Task 2]: ERROR: boom\n") {
				t.Errorf("missing error line in %q", rec.String())
			}
		})
	}
}

// TestBatchMirroredToRedis requires a Redis server on localhost:6379.
func TestBatchMirroredToRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	stream := fmt.Sprintf("psconcurrent:test:%d", time.Now().UnixNano())
	defer rdb.Del(context.Background(), stream)

	rec := console.NewRecorder()
	m, err := mirror.New(rec, mirror.Config{Client: rdb, Stream: stream, BatchID: "it"})
	testutil.AssertNoError(t, err)

	c, err := batch.New(batch.Config{MaxConcurrency: 3, UI: m})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, c.Start())
	for i := 0; i < 3; i++ {
		_, _ = c.Submit(batch.JobFunc(func(w *batch.Worker) error {
			w.UI().WriteLine(fmt.Sprintf("line from %d", w.ID()))
			return nil
		}))
	}
	testutil.AssertNoError(t, c.Wait())
	testutil.AssertNoError(t, m.Close())

	entries, err := rdb.XRange(ctx, stream, "-", "+").Result()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(entries), len(rec.Lines()))
	for _, e := range entries {
		testutil.AssertEqual(t, e.Values["batch"], any("it"))
		if text, _ := e.Values["text"].(string); !strings.HasPrefix(text, "[Task ") {
			t.Errorf("mirrored line without header: %q", text)
		}
	}
}
