package event

import (
	"reflect"
	"sort"
	"sync"
)

// StickyStore retains the most recent sticky event of each event type.
// It is thread-safe for concurrent access.
type StickyStore struct {
	mu     sync.RWMutex
	events map[reflect.Type]any
}

// NewStickyStore creates an empty sticky store.
func NewStickyStore() *StickyStore {
	return &StickyStore{events: make(map[reflect.Type]any)}
}

// Put stores event, replacing any previous event of the same type.
func (s *StickyStore) Put(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[reflect.TypeOf(event)] = event
}

// Get returns the sticky event of type t.
func (s *StickyStore) Get(t reflect.Type) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[t]
	return e, ok
}

// Remove removes and returns the sticky event of type t.
func (s *StickyStore) Remove(t reflect.Type) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[t]
	if ok {
		delete(s.events, t)
	}
	return e, ok
}

// RemoveExact removes the sticky event of event's type only if it equals event.
// Comparable values are compared with ==, others with reflect.DeepEqual.
func (s *StickyStore) RemoveExact(event any) bool {
	t := reflect.TypeOf(event)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.events[t]
	if !ok || !sameEvent(current, event) {
		return false
	}
	delete(s.events, t)
	return true
}

func sameEvent(a, b any) bool {
	if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Clear removes all sticky events.
func (s *StickyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
}

// Len returns the number of retained sticky events.
func (s *StickyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// StickyEntry is one retained sticky event.
type StickyEntry struct {
	Type  reflect.Type
	Event any
}

// Snapshot returns every retained sticky event, sorted by type name.
func (s *StickyStore) Snapshot() []StickyEntry {
	s.mu.RLock()
	out := make([]StickyEntry, 0, len(s.events))
	for t, e := range s.events {
		out = append(out, StickyEntry{Type: t, Event: e})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Type.String() < out[j].Type.String()
	})
	return out
}
