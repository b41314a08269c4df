// Package dispatch provides the execution contexts the event bus delivers on.
//
// # Dispatchers
//
// Three dispatcher implementations are provided:
//
//   - SyncDispatcher: Executes handlers synchronously in the caller's goroutine.
//     Backs the PostThread mode.
//
//   - SerialDispatcher: Executes handlers one at a time on a single dedicated
//     goroutine, in enqueue order. Backs the BackgroundThread mode and is the
//     default main loop for the MainThread mode.
//
//   - AsyncDispatcher: Executes handlers on a pool of worker goroutines with no
//     ordering guarantee. Backs the Async mode.
//
// Queued dispatchers never block Enqueue. Their queues are unbounded unless a
// size is configured, in which case a full queue rejects the task with
// ErrQueueFull.
//
// # Panic Recovery
//
// All dispatchers recover from panics in handlers, preventing a misbehaving
// subscriber from crashing the process. Panics are reported in the Result and
// via a configurable PanicHandler callback.
//
// # Contexts
//
// A queued handler runs with a context derived from the enqueuing context by
// context.WithoutCancel: values are kept, cancellation is ignored. The derived
// context is also marked with the dispatcher running it, which IsCurrent
// reports. The mark travels with the context, so goroutines a handler starts
// with its context report true as well. It identifies where a context came
// from, not which goroutine is running.
//
// # Usage
//
//	background := dispatch.NewSerialDispatcher()
//	background.Start()
//	defer background.Stop(ctx)
//
//	background.Enqueue(ctx, evt, dispatch.HandlerFunc(func(ctx context.Context, evt any) error {
//	    return nil
//	}))
package dispatch
