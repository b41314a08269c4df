package dispatch

import (
	"context"
	"sync"
)

// task represents a handler invocation waiting in a queue.
type task struct {
	ctx     context.Context
	event   any
	handler Handler
}

// taskQueue is a FIFO of tasks shared by one or more workers.
// A limit of zero means the queue grows without bound.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []task
	limit  int
	closed bool
}

func newTaskQueue(limit int) *taskQueue {
	q := &taskQueue{limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends t to the tail of the queue. It never blocks.
func (q *taskQueue) push(t task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrNotRunning
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		return ErrQueueFull
	}
	q.items = append(q.items, t)
	q.cond.Signal()
	return nil
}

// pop removes the head of the queue, blocking while the queue is empty.
// It reports false once the queue is closed and fully drained.
func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return task{}, false
	}
	t := q.items[0]
	q.items[0] = task{}
	q.items = q.items[1:]
	return t, true
}

// close stops accepting tasks. Tasks already queued are still handed out.
func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
