package event

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStickyStore_PutGet(t *testing.T) {
	s := NewStickyStore()

	if _, ok := s.Get(testEventType); ok {
		t.Fatal("Get() on empty store reported ok")
	}

	s.Put(testEvent{N: 1})
	s.Put(testEvent{N: 2})
	s.Put(otherEvent{Name: "x"})

	got, ok := s.Get(testEventType)
	if !ok || got != (testEvent{N: 2}) {
		t.Errorf("Get() = %v, %v; want the latest event", got, ok)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestStickyStore_PointerAndValueAreDistinct(t *testing.T) {
	s := NewStickyStore()
	s.Put(testEvent{N: 1})
	s.Put(&testEvent{N: 2})

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if _, ok := s.Get(reflect.TypeFor[*testEvent]()); !ok {
		t.Error("pointer event not stored under its own type")
	}
}

func TestStickyStore_Remove(t *testing.T) {
	s := NewStickyStore()
	s.Put(testEvent{N: 1})

	got, ok := s.Remove(testEventType)
	if !ok || got != (testEvent{N: 1}) {
		t.Errorf("Remove() = %v, %v", got, ok)
	}
	if _, ok := s.Remove(testEventType); ok {
		t.Error("second Remove() reported ok")
	}
}

type sliceEvent struct{ Items []int }

func TestStickyStore_RemoveExact(t *testing.T) {
	s := NewStickyStore()
	s.Put(testEvent{N: 1})

	if s.RemoveExact(testEvent{N: 2}) {
		t.Error("RemoveExact() removed a different value")
	}
	if !s.RemoveExact(testEvent{N: 1}) {
		t.Error("RemoveExact() did not remove an equal value")
	}

	s.Put(sliceEvent{Items: []int{1, 2}})
	if !s.RemoveExact(sliceEvent{Items: []int{1, 2}}) {
		t.Error("RemoveExact() should compare uncomparable values deeply")
	}

	ptr := &testEvent{N: 1}
	s.Put(ptr)
	if s.RemoveExact(&testEvent{N: 1}) {
		t.Error("RemoveExact() should compare pointers by identity")
	}
	if !s.RemoveExact(ptr) {
		t.Error("RemoveExact() did not remove the same pointer")
	}
}

func TestStickyStore_SnapshotAndClear(t *testing.T) {
	s := NewStickyStore()
	s.Put(testEvent{N: 1})
	s.Put(otherEvent{Name: "x"})

	var names []string
	for _, e := range s.Snapshot() {
		names = append(names, e.Type.String())
	}
	if diff := cmp.Diff([]string{"event.otherEvent", "event.testEvent"}, names); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear", s.Len())
	}
}
