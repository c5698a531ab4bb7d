/*
Package dispatcher provides the semaphore-gated scheduling.Scheduler.

A single dispatch goroutine pulls jobs from an unbounded backlog one at a
time. Before starting a job it acquires an admission slot (capacity
MaxConcurrency); the slot is released when the job finishes, whether it
returned, failed or panicked. If cancellation is observed after the slot was
acquired but before the job started, the slot is released and the job is
skipped without being reported as an error.

Basic usage:

	d, err := dispatcher.New(scheduling.Config{
		MaxConcurrency: 4,
		OnJobError: func(err error) {
			log.Printf("job failed: %v", err)
		},
	})
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := d.Submit(job); err != nil {
			return err
		}
	}

	d.Close()
	<-d.Completed()

Submit after Close fails with errors.ErrInvalidState. The dispatch goroutine
exits once the backlog is closed and drained and every started job has
finished; Completed is closed at that point.
*/
package dispatcher
