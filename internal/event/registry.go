package event

import (
	"reflect"
	"slices"
	"sort"
	"sync"
)

// Registry manages subscriptions organized by event type.
// It is thread-safe for concurrent access.
//
// Per-type slices are copy-on-write: a slice returned by Lookup is never
// modified afterwards, so callers can iterate it without holding a lock
// while subscriber code runs.
type Registry struct {
	mu      sync.RWMutex
	byType  map[reflect.Type][]*subscription
	byOwner map[any][]reflect.Type
	ifaces  []reflect.Type
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[reflect.Type][]*subscription),
		byOwner: make(map[any][]reflect.Type),
	}
}

// Add adds a subscription for its method's event type.
// The subscription is inserted after every existing subscription with equal
// or higher priority. Returns false if the same subscriber is already
// registered with the same method.
func (r *Registry) Add(sub *subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := sub.method.EventType
	subs := r.byType[t]
	for _, s := range subs {
		if s.sameAs(sub) {
			return false
		}
	}

	pos := len(subs)
	for i, s := range subs {
		if sub.priority > s.priority {
			pos = i
			break
		}
	}
	r.byType[t] = slices.Insert(slices.Clone(subs), pos, sub)

	if len(subs) == 0 && t.Kind() == reflect.Interface && !slices.Contains(r.ifaces, t) {
		r.ifaces = append(r.ifaces, t)
	}

	owned := r.byOwner[sub.subscriber]
	if !slices.Contains(owned, t) {
		r.byOwner[sub.subscriber] = append(owned, t)
	}
	return true
}

// RemoveOwner removes and cancels every subscription of owner.
// Returns the removed subscriptions.
func (r *Registry) RemoveOwner(owner any) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	types, ok := r.byOwner[owner]
	if !ok {
		return nil
	}
	delete(r.byOwner, owner)

	var removed []*subscription
	for _, t := range types {
		subs := r.byType[t]
		kept := make([]*subscription, 0, len(subs))
		for _, s := range subs {
			if s.subscriber == owner {
				s.cancel()
				removed = append(removed, s)
				continue
			}
			kept = append(kept, s)
		}

		if len(kept) == 0 {
			delete(r.byType, t)
			if i := slices.Index(r.ifaces, t); i >= 0 {
				r.ifaces = slices.Delete(slices.Clone(r.ifaces), i, i+1)
			}
			continue
		}
		r.byType[t] = kept
	}
	return removed
}

// Lookup returns the subscriptions for exactly event type t in priority order.
// The returned slice must not be modified.
func (r *Registry) Lookup(t reflect.Type) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t]
}

// LookupAssignable returns the subscriptions for t followed by those of every
// registered interface type t implements. Each group is in its own priority
// order; interface groups follow the order the interfaces were first
// subscribed to.
func (r *Registry) LookupAssignable(t reflect.Type) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exact := r.byType[t]
	var out []*subscription
	for _, iface := range r.ifaces {
		if iface == t || !t.Implements(iface) {
			continue
		}
		if out == nil {
			out = slices.Clone(exact)
		}
		out = append(out, r.byType[iface]...)
	}
	if out == nil {
		return exact
	}
	return out
}

// HasSubscriberForEvent reports whether any subscription exists for exactly t.
func (r *Registry) HasSubscriberForEvent(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[t]) > 0
}

// IsRegistered reports whether owner has at least one subscription.
func (r *Registry) IsRegistered(owner any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byOwner[owner]
	return ok
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, subs := range r.byType {
		count += len(subs)
	}
	return count
}

// Types returns every event type with at least one subscription, sorted by name.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	types := make([]reflect.Type, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool {
		return types[i].String() < types[j].String()
	})
	return types
}

// Clear removes and cancels all subscriptions.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, subs := range r.byType {
		for _, s := range subs {
			s.cancel()
		}
	}
	r.byType = make(map[reflect.Type][]*subscription)
	r.byOwner = make(map[any][]reflect.Type)
	r.ifaces = nil
}
