package event

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFilterPayload(t *testing.T) {
	f := FilterPayload(func(e testEvent) bool { return e.N > 1 })

	tests := []struct {
		name  string
		event any
		want  bool
	}{
		{"matching", testEvent{N: 2}, true},
		{"not matching", testEvent{N: 1}, false},
		{"other type", otherEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f(tt.event); got != tt.want {
				t.Errorf("filter(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestFilterCombinators(t *testing.T) {
	even := FilterPayload(func(e testEvent) bool { return e.N%2 == 0 })
	big := FilterPayload(func(e testEvent) bool { return e.N > 10 })

	tests := []struct {
		name   string
		filter FilterFunc
		event  testEvent
		want   bool
	}{
		{"and both", FilterAnd(even, big), testEvent{N: 12}, true},
		{"and one", FilterAnd(even, big), testEvent{N: 4}, false},
		{"and none given", FilterAnd(), testEvent{N: 1}, true},
		{"or one", FilterOr(even, big), testEvent{N: 4}, true},
		{"or neither", FilterOr(even, big), testEvent{N: 3}, false},
		{"or none given", FilterOr(), testEvent{N: 1}, false},
		{"not", FilterNot(even), testEvent{N: 3}, true},
		{"all", FilterAll(), testEvent{}, true},
		{"none", FilterNone(), testEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter(tt.event); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterOnce(t *testing.T) {
	f := FilterOnce()

	var passed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f(testEvent{}) {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	if passed.Load() != 1 {
		t.Errorf("FilterOnce passed %d events, want 1", passed.Load())
	}
}
