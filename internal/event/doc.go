// Package event provides stickybus, an in-process publish/subscribe engine.
//
// Subscribers register interest in event types, producers post event values,
// and the bus routes each event to every matching registered subscriber. A
// delivery runs on the execution context the subscriber method asks for. The
// bus also retains sticky events, the most recent value of an event type, so
// late subscribers can receive it at registration.
//
// # Architecture
//
//	                    ┌──────────────────────────────────────────┐
//	                    │                   Bus                    │
//	                    │  - Post / PostSticky                     │
//	                    │  - Register / Unregister                 │
//	                    │  - thread-mode routing                   │
//	                    └──────────────────────────────────────────┘
//	                                      │
//	          ┌───────────────────────────┼───────────────────────────┐
//	          ▼                           ▼                           ▼
//	┌─────────────────┐         ┌─────────────────┐         ┌─────────────────┐
//	│    Resolver     │         │    Registry     │         │  StickyStore    │
//	│  - Annotated    │         │  - per type,    │         │  - one value    │
//	│  - OnEvent*     │         │    by priority  │         │    per type     │
//	└─────────────────┘         └─────────────────┘         └─────────────────┘
//
// # Event Types
//
// The event type is the dynamic Go type of the posted value. T and *T are
// different event types. Subscribers of an interface type receive the events
// implementing it only with WithEventInheritance.
//
// # Declaring Subscribers
//
// A subscriber type lists its event methods by implementing Annotated:
//
//	type Screen struct{ ... }
//
//	func (s *Screen) EventMethods() []event.Annotation {
//	    return []event.Annotation{
//	        {Method: "OnFrame", Mode: event.MainThread},
//	        {Method: "OnSave", Mode: event.BackgroundThread},
//	    }
//	}
//
//	func (s *Screen) OnFrame(f Frame) { ... }
//	func (s *Screen) OnSave(ctx context.Context, e Saved) error { ... }
//
// An event method takes the event as its only parameter, optionally preceded
// by a context.Context, and returns nothing or an error. Annotations of
// embedded types are collected too. Plain functions can be subscribed
// without reflection using Subscribe.
//
// # Thread Modes
//
//   - PostThread: runs on the posting goroutine before Post returns
//   - MainThread: always queued on the main loop, even when posted from it
//   - BackgroundThread: runs on one background goroutine, one at a time, in order
//   - Async: runs on a worker pool, concurrently and unordered
//
// Queued deliveries never block Post. Their context keeps the values of the
// posting context but not its cancellation.
//
// # Priority Ordering
//
// Within one post, subscriptions are visited by descending priority, ties in
// registration order. Priority affects visiting order only: a queued delivery
// may still run after one visited later.
//
// # Basic Usage
//
//	bus := event.New(event.WithLogger(logger))
//	defer bus.Shutdown(context.Background())
//
//	if err := bus.Register(screen); err != nil {
//	    return err
//	}
//	defer bus.Unregister(screen)
//
//	bus.Post(ctx, Frame{N: 1})
//
// # Sticky Events
//
//	bus.PostSticky(ctx, Location{Lat: 52.5, Lon: 13.4})
//
//	// Later: receives the Location immediately.
//	bus.RegisterSticky(mapView)
//
//	loc, ok := event.StickyEvent[Location](bus)
//
// # Failures
//
// A subscriber that returns an error or panics does not stop delivery to the
// others. The failure is logged, counted, and posted as a
// SubscriberExceptionEvent. Failures of deliveries that ran on the posting
// goroutine are also returned from Post as *SubscriberError values.
package event
