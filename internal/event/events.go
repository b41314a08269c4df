package event

import "reflect"

// SubscriberExceptionEvent is posted when a subscriber returns an error or
// panics. A failing SubscriberExceptionEvent subscriber does not produce
// another SubscriberExceptionEvent.
type SubscriberExceptionEvent struct {
	// Bus is the bus the failure happened on.
	Bus *Bus

	// Err describes the failure.
	Err *SubscriberError

	// Event is the event that was being delivered.
	Event any

	// Subscriber is the subscriber that failed.
	Subscriber any
}

// NoSubscriberEvent is posted for an event that matched no subscription,
// when enabled with WithNoSubscriberEvent.
type NoSubscriberEvent struct {
	// Bus is the bus the event was posted on.
	Bus *Bus

	// Event is the event nobody subscribed to.
	Event any
}

var (
	subscriberExceptionEventType = reflect.TypeFor[SubscriberExceptionEvent]()
	noSubscriberEventType        = reflect.TypeFor[NoSubscriberEvent]()
)
