// Package eventloop provides a single-owner callback queue.
//
// A Loop lets any goroutine hand a callback to the one goroutine running
// RunLoop, either synchronously (InvokeSynchronously blocks until the
// callback has run) or fire-and-forget (Post). Callbacks run one at a time in
// FIFO order of enqueue.
//
// The goroutine that calls RunLoop becomes the owner. A synchronous
// invocation from the owner could never complete, so it fails with
// errors.ErrInvalidUsage instead of deadlocking.
//
//	loop := eventloop.New()
//	go func() {
//		defer loop.Complete()
//		_ = loop.InvokeSynchronously(func() { fmt.Println("on the owner") })
//	}()
//	_ = loop.RunLoop()
package eventloop
