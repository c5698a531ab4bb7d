package dispatcher

import (
	"sync"

	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

// backlog is an unbounded blocking FIFO of not-yet-started jobs. Producers
// never block; the single consumer blocks in take until a job arrives or the
// backlog is closed and drained.
type backlog struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []scheduling.Job
	closed bool
}

func newBacklog() *backlog {
	b := &backlog{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// put appends job. It returns false if the backlog is closed.
func (b *backlog) put(job scheduling.Job) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.items = append(b.items, job)
	b.cond.Signal()
	return true
}

// take removes the oldest job. It returns false once the backlog is closed and empty.
func (b *backlog) take() (scheduling.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.items) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.items) == 0 {
		return nil, false
	}
	job := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return job, true
}

// close marks the backlog closed. It reports whether this call closed it.
func (b *backlog) close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.closed = true
	b.cond.Broadcast()
	return true
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
