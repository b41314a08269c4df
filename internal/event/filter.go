package event

import "sync/atomic"

// Common filter predicates for typed subscriptions.

// FilterPayload creates a filter from a predicate on events of type T.
// Events of other types are rejected.
func FilterPayload[T any](predicate func(event T) bool) FilterFunc {
	return func(event any) bool {
		e, ok := event.(T)
		return ok && predicate(e)
	}
}

// FilterAnd combines multiple filters with AND logic.
// All filters must pass for the event to be delivered.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines multiple filters with OR logic.
// At least one filter must pass for the event to be delivered.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if f(event) {
				return true
			}
		}
		return false
	}
}

// FilterNot negates a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(event any) bool {
		return !filter(event)
	}
}

// FilterAll allows all events (no filtering).
func FilterAll() FilterFunc {
	return func(event any) bool {
		return true
	}
}

// FilterNone blocks all events.
func FilterNone() FilterFunc {
	return func(event any) bool {
		return false
	}
}

// FilterOnce allows only the first event it is asked about.
func FilterOnce() FilterFunc {
	var done atomic.Bool
	return func(event any) bool {
		return done.CompareAndSwap(false, true)
	}
}
