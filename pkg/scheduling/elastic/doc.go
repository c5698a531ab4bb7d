// Package elastic provides a self-scaling scheduling.Scheduler.
//
// Submitted jobs go into a lock-free FIFO queue. A submission starts a new
// dispatcher goroutine whenever fewer than MaxConcurrency dispatchers exist;
// each dispatcher drains the queue and exits when it finds the queue empty.
// No goroutine exists while the scheduler is idle.
//
// SubmitHandle returns a Handle for the queued job. A job that is still
// queued can be removed, or, when the caller is itself running on one of the
// scheduler's dispatchers, executed inline on the calling goroutine:
//
//	s, _ := elastic.New(scheduling.Config{MaxConcurrency: 4})
//	h, _ := s.SubmitHandle(job)
//	if !h.Remove() {
//		<-h.Done()
//	}
package elastic
