package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.JobSubmitted("s")
	r.JobStarted("s")
	r.JobFinished("s", time.Second, errors.New("x"))
	r.JobSkipped("s")
	r.SetInFlight("s", 3)
	r.SetQueued("s", 1)
	r.DispatcherSpawned("s")
	r.LoopInvoked("sync")
	r.SetLoopQueueDepth("l", 2)
	r.ConsoleWrite("line")
	r.ConsoleLineBreak("c")
	r.MirrorFailed("stream")
	r.BatchFinished("success", time.Second)
	r.OutputDelivered("b")
}

func TestJobCounters(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.JobSubmitted("pool")
	r.JobSubmitted("pool")
	r.JobStarted("pool")
	r.JobFinished("pool", 10*time.Millisecond, nil)
	r.JobStarted("pool")
	r.JobFinished("pool", 10*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(r.JobsSubmitted.WithLabelValues("pool")); got != 2 {
		t.Errorf("submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.JobsCompleted.WithLabelValues("pool")); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.JobsFailed.WithLabelValues("pool")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestGauges(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.SetInFlight("pool", 4)
	r.SetQueued("pool", 7)

	if got := testutil.ToFloat64(r.InFlight.WithLabelValues("pool")); got != 4 {
		t.Errorf("in flight = %v, want 4", got)
	}
	if got := testutil.ToFloat64(r.Queued.WithLabelValues("pool")); got != 7 {
		t.Errorf("queued = %v, want 7", got)
	}
}

func TestNewFromConfig(t *testing.T) {
	if New(Config{Enabled: false}) != nil {
		t.Error("disabled config should yield nil registry")
	}

	reg := prometheus.NewRegistry()
	r := New(Config{Enabled: true, Registry: reg, Namespace: "custom", Labels: prometheus.Labels{"env": "test"}})
	r.BatchFinished("success", time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "custom_batch_batches_total" {
			found = true
			labels := mf.GetMetric()[0].GetLabel()
			hasEnv := false
			for _, l := range labels {
				if l.GetName() == "env" && l.GetValue() == "test" {
					hasEnv = true
				}
			}
			if !hasEnv {
				t.Error("constant label env=test missing")
			}
		}
	}
	if !found {
		t.Error("custom_batch_batches_total not registered under custom namespace")
	}
}
