package elastic

import (
	"sync/atomic"

	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

// entry is a queued job. Exactly one party wins take: a dispatcher that runs
// it, an inline caller, or Remove. Losers leave the tombstone in the queue.
type entry struct {
	job   scheduling.Job
	taken atomic.Bool
	done  chan struct{}
}

func newEntry(job scheduling.Job) *entry {
	return &entry{job: job, done: make(chan struct{})}
}

func (e *entry) take() bool {
	return e.taken.CompareAndSwap(false, true)
}

// Handle refers to a job submitted with SubmitHandle.
type Handle struct {
	s *Scheduler
	e *entry
}

// Remove withdraws the job if no dispatcher has taken it yet. It reports
// whether the job was removed; a removed job never runs.
func (h *Handle) Remove() bool {
	if !h.e.take() {
		return false
	}
	h.s.log.Debug("job removed")
	h.s.config.Metrics.JobSkipped(h.s.config.Name)
	h.s.finish(h.e)
	return true
}

// RunInline runs the job on the calling goroutine. It does nothing and
// returns false unless the caller is one of this scheduler's dispatchers and
// the job is still queued.
func (h *Handle) RunInline() bool {
	if !h.s.onDispatcher() || !h.e.take() {
		return false
	}
	h.s.execute(h.e, true)
	return true
}

// Done is closed once the job has finished, been skipped, or been removed.
func (h *Handle) Done() <-chan struct{} {
	return h.e.done
}
