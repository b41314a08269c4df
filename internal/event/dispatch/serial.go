package dispatch

import "context"

// SerialDispatcher runs handlers one at a time, in enqueue order, on a single
// dedicated goroutine. No two of its handlers ever run concurrently.
//
// A handler that never returns blocks every handler queued behind it.
type SerialDispatcher struct {
	async *AsyncDispatcher
}

// NewSerialDispatcher creates a serial dispatcher. Any worker count in opts
// is overridden to one.
func NewSerialDispatcher(opts ...AsyncOption) *SerialDispatcher {
	opts = append(opts, WithWorkerCount(1))
	return &SerialDispatcher{async: NewAsyncDispatcher(opts...)}
}

// Start starts the worker goroutine.
func (d *SerialDispatcher) Start() error {
	return d.async.Start()
}

// Stop drains the queue and stops the worker goroutine.
func (d *SerialDispatcher) Stop(ctx context.Context) error {
	return d.async.Stop(ctx)
}

// Enqueue appends a task to the queue. It never blocks.
func (d *SerialDispatcher) Enqueue(ctx context.Context, event any, handler Handler) error {
	return d.async.Enqueue(ctx, event, handler)
}

// IsCurrent reports whether ctx was derived from a handler context of this
// dispatcher.
func (d *SerialDispatcher) IsCurrent(ctx context.Context) bool {
	return d.async.IsCurrent(ctx)
}

// IsRunning returns true if the dispatcher is running.
func (d *SerialDispatcher) IsRunning() bool {
	return d.async.IsRunning()
}

// QueueDepth returns the number of tasks waiting to run.
func (d *SerialDispatcher) QueueDepth() int {
	return d.async.QueueDepth()
}

// Stats returns dispatcher statistics.
func (d *SerialDispatcher) Stats() AsyncDispatcherStats {
	return d.async.Stats()
}
