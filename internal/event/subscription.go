package event

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStateCancelled means the subscriber was unregistered.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription is a read-only view of one registered subscriber method.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Subscriber returns the registered subscriber value.
	Subscriber() any

	// Method returns the subscriber method invoked for matching events.
	Method() *SubscriberMethod

	// Priority returns the priority the subscriber was registered with.
	Priority() Priority

	// State returns the current subscription state.
	State() SubscriptionState

	// IsActive returns true if the subscription can receive events.
	IsActive() bool
}

// subscription binds a subscriber instance to one of its methods.
type subscription struct {
	id         string
	subscriber any
	method     *SubscriberMethod
	priority   Priority
	filter     FilterFunc
	state      atomic.Int32
}

func newSubscription(subscriber any, method *SubscriberMethod, priority Priority, filter FilterFunc) *subscription {
	s := &subscription{
		id:         uuid.NewString(),
		subscriber: subscriber,
		method:     method,
		priority:   priority,
		filter:     filter,
	}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

func (s *subscription) ID() string                { return s.id }
func (s *subscription) Subscriber() any           { return s.subscriber }
func (s *subscription) Method() *SubscriberMethod { return s.method }
func (s *subscription) Priority() Priority        { return s.priority }

// State returns the current subscription state.
func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// IsActive returns true if the subscription is active.
func (s *subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

// cancel permanently deactivates the subscription.
func (s *subscription) cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// accepts reports whether event passes the subscription's filter.
func (s *subscription) accepts(event any) bool {
	return s.filter == nil || s.filter(event)
}

// sameAs reports whether o binds the same subscriber to the same method.
func (s *subscription) sameAs(o *subscription) bool {
	return s.subscriber == o.subscriber &&
		s.method.Owner == o.method.Owner &&
		s.method.key() == o.method.key()
}

// Handle implements dispatch.Handler.
func (s *subscription) Handle(ctx context.Context, event any) error {
	return s.method.invoke(ctx, s.subscriber, event)
}
