package event

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dshills/stickybus/internal/event/dispatch"
)

// Sentinel errors for the event bus.
var (
	// ErrBusClosed is returned when operations are attempted on a shut down bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrInvalidEvent is returned when a nil event is posted.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidSubscription is returned when a typed subscription is missing its owner or handler.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrNoSubscriberMethods is returned by the naming resolver when a
	// subscriber type declares no eligible methods.
	ErrNoSubscriberMethods = errors.New("subscriber has no event methods")

	// ErrUncomparableSubscriber is returned when a subscriber value cannot be
	// used as a registry key, for example a struct value holding a slice.
	ErrUncomparableSubscriber = errors.New("subscriber is not comparable")

	// ErrSubscriberPanic is matched by errors.Is for subscribers that panicked.
	ErrSubscriberPanic = errors.New("subscriber panicked")

	// ErrQueueFull is returned when a bounded delivery queue is at capacity.
	ErrQueueFull = dispatch.ErrQueueFull
)

// SubscriberError describes a failed subscriber invocation.
type SubscriberError struct {
	// SubscriptionID is the ID of the subscription whose method failed.
	SubscriptionID string

	// Subscriber is the registered subscriber value.
	Subscriber any

	// Method is the name of the subscriber method.
	Method string

	// Mode is the thread mode the invocation ran in.
	Mode ThreadMode

	// EventType is the type of the event being delivered.
	EventType reflect.Type

	// Err is the underlying error. It is a *PanicError if the method panicked.
	Err error
}

// Error implements the error interface.
func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %T.%s (%s) failed on %v: %v", e.Subscriber, e.Method, e.Mode, e.EventType, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubscriberError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrSubscriberPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrSubscriberPanic
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
