package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// currentKey is the context key under which a queued dispatcher marks the
// contexts of the handlers it runs.
type currentKey struct{}

// AsyncDispatcher executes handlers asynchronously using a worker pool.
// The queue is unbounded unless WithQueueSize sets a limit. Handlers run
// concurrently and in no particular order when more than one worker is
// configured.
type AsyncDispatcher struct {
	// Configuration
	queueSize   int
	workerCount int

	// State
	mu      sync.Mutex // protects queue creation/destruction
	queue   *taskQueue
	running atomic.Bool
	wg      sync.WaitGroup

	// Handlers
	panicHandler PanicHandler

	// Stats
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewAsyncDispatcher creates a new asynchronous dispatcher.
func NewAsyncDispatcher(opts ...AsyncOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		queueSize:    0,
		workerCount:  4,
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AsyncOption configures an AsyncDispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithQueueSize bounds the task queue. Zero keeps the queue unbounded.
func WithQueueSize(size int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if size >= 0 {
			d.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if count > 0 {
			d.workerCount = count
		}
	}
}

// WithAsyncPanicHandler sets the panic handler for async execution.
func WithAsyncPanicHandler(h PanicHandler) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.panicHandler = h
	}
}

// Start starts the worker pool.
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return ErrAlreadyRunning
	}

	d.queue = newTaskQueue(d.queueSize)
	d.running.Store(true)

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(d.queue)
	}

	return nil
}

// Stop stops the worker pool gracefully.
// Queued tasks are drained before the workers exit. Stop waits for that or
// until ctx is done, whichever comes first.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return ErrNotRunning
	}

	d.running.Store(false)
	d.queue.close()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a task to the queue for asynchronous execution.
// It never blocks. Returns ErrQueueFull if a bounded queue is at capacity
// and ErrNotRunning if the dispatcher is stopped.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, event any, handler Handler) error {
	d.mu.Lock()
	q := d.queue
	running := d.running.Load()
	d.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	err := q.push(task{ctx: ctx, event: event, handler: handler})
	switch err {
	case nil:
		d.enqueued.Add(1)
	case ErrQueueFull:
		d.dropped.Add(1)
	}
	return err
}

// IsCurrent reports whether ctx was derived from a handler context of this
// dispatcher.
func (d *AsyncDispatcher) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(currentKey{}).(*AsyncDispatcher)
	return owner == d
}

// worker processes tasks from the queue.
func (d *AsyncDispatcher) worker(q *taskQueue) {
	defer d.wg.Done()

	executor := NewExecutor(WithExecutorPanicHandler(d.panicHandler))

	for {
		t, ok := q.pop()
		if !ok {
			return
		}
		d.executeTask(executor, t)
	}
}

// executeTask executes a single task with panic recovery.
// Cancellation of the enqueuing context does not skip the task; its values
// are kept and the task context is marked as running on d.
func (d *AsyncDispatcher) executeTask(executor *Executor, t task) {
	d.processed.Add(1)
	start := time.Now()

	var executorHandled bool

	// Fallback for panics that escape the executor.
	defer func() {
		if r := recover(); r != nil {
			if !executorHandled {
				d.panicked.Add(1)
			}
			if d.panicHandler != nil {
				stack := debug.Stack()
				func() {
					defer func() { _ = recover() }()
					d.panicHandler(t.event, r, stack)
				}()
			}
		}
		d.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	parent := t.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx := context.WithValue(context.WithoutCancel(parent), currentKey{}, d)

	result := executor.Execute(ctx, t.event, t.handler)
	executorHandled = true

	switch {
	case result.Panicked:
		d.panicked.Add(1)
	case result.Error != nil:
		d.failed.Add(1)
	case result.Success:
		d.succeeded.Add(1)
	}
}

// QueueDepth returns the current number of tasks in the queue.
// Returns 0 if the dispatcher is not running.
func (d *AsyncDispatcher) QueueDepth() int {
	d.mu.Lock()
	q := d.queue
	d.mu.Unlock()
	if q == nil || !d.running.Load() {
		return 0
	}
	return q.len()
}

// Stats returns dispatcher statistics.
func (d *AsyncDispatcher) Stats() AsyncDispatcherStats {
	processed := d.processed.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return AsyncDispatcherStats{
		Enqueued:      d.enqueued.Load(),
		Processed:     processed,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		Dropped:       d.dropped.Load(),
		QueueDepth:    d.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// AsyncDispatcherStats contains statistics for an async dispatcher.
type AsyncDispatcherStats struct {
	// Enqueued is the total number of tasks added to the queue.
	Enqueued uint64

	// Processed is the number of tasks that have been processed.
	Processed uint64

	// Succeeded is the number of successful handler executions.
	Succeeded uint64

	// Failed is the number of handlers that returned errors.
	Failed uint64

	// Panicked is the number of handlers that panicked.
	Panicked uint64

	// Dropped is the number of tasks rejected by a full bounded queue.
	Dropped uint64

	// QueueDepth is the current number of tasks waiting in the queue.
	QueueDepth int

	// TotalDuration is the cumulative time spent processing tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task processing time.
	AvgDuration time.Duration
}

// IsRunning returns true if the dispatcher is running.
func (d *AsyncDispatcher) IsRunning() bool {
	return d.running.Load()
}
