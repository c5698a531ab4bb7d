/*
Package batch runs a batch of jobs concurrently and presents their output as
one coherent session.

A Coordinator owns one scheduler, one event loop and one console
multiplexer. Jobs are submitted from the host goroutine, run on scheduler
goroutines with at most MaxConcurrency running at once, and hand their
results back through Worker.Emit. Results reach the host's Output callback on
the goroutine that called Wait, one at a time, in the order they were
emitted. Console output goes through Worker.UI and is attributed per worker.

Lifecycle:

	Idle --Start--> Submitting --Wait--> Draining --> Completed

Basic usage:

	c, err := batch.New(batch.Config{
		MaxConcurrency: 4,
		UI:             console.NewTerminalUI(os.Stdout, os.Stdin),
		Output:         func(item batch.OutputItem) { fmt.Println(item.WorkerID, item.Value) },
	})
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}
	for _, j := range jobs {
		if _, err := c.Submit(j); err != nil {
			return err
		}
	}
	return c.Wait()

Errors:

Every job error is written to the worker's error line as it occurs and
collected. The first error cancels the batch: jobs not yet started are
skipped and running jobs see their context canceled. Wait returns nil, the
single job error unchanged, or an *errors.CompositeError holding the
flattened leaf errors of every failed job. An error that only reports the
batch's own cancellation (context.Canceled after Cancel) is not collected.

Submissions after Cancel are dropped silently and return worker id 0.
*/
package batch
