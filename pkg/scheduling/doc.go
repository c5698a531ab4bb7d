/*
Package scheduling defines the bounded-concurrency scheduler contract shared by
the two scheduler implementations:

  - dispatcher: a single dispatch goroutine pulling from a blocking backlog and
    gating each start on an admission slot
  - elastic: a self-scaling lock-free scheduler that spins up dispatch workers
    on demand, bounded by an atomic in-flight counter

Both accept Jobs until Close, run at most MaxConcurrency of them at once, skip
queued jobs after Cancel and close Completed exactly once after the last
admitted job has finished:

	s, err := dispatcher.New(scheduling.Config{MaxConcurrency: 4})
	if err != nil {
		return err
	}

	s.Submit(scheduling.JobFunc(func(ctx context.Context) error {
		// Do work, observing ctx for cancellation
		return nil
	}))

	s.Close()
	<-s.Completed()

Job errors and panics never escape the scheduler. They are handed to
Config.OnJobError and the admission slot is always released.
*/
package scheduling
