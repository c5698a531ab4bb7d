package elastic

import "sync/atomic"

type node struct {
	entry *entry
	next  atomic.Pointer[node]
}

// queue is an unbounded multi-producer multi-consumer FIFO after Michael and
// Scott. head always points at a sentinel node.
type queue struct {
	head atomic.Pointer[node]
	tail atomic.Pointer[node]
	size atomic.Int64
}

func newQueue() *queue {
	q := &queue{}
	sentinel := &node{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

func (q *queue) enqueue(e *entry) {
	n := &node{entry: e}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// Tail is lagging; help it along
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.size.Add(1)
			return
		}
	}
}

// dequeue returns nil when the queue is empty.
func (q *queue) dequeue() *entry {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return nil
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		e := next.entry
		if q.head.CompareAndSwap(head, next) {
			q.size.Add(-1)
			return e
		}
	}
}

func (q *queue) empty() bool {
	return q.head.Load().next.Load() == nil
}

// len is approximate; enqueue publishes the node before counting it.
func (q *queue) len() int {
	if n := q.size.Load(); n > 0 {
		return int(n)
	}
	return 0
}
