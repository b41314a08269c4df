package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// testHandler is a simple handler for testing.
type testHandler struct {
	fn func(ctx context.Context, event any) error
}

func (h *testHandler) Handle(ctx context.Context, event any) error {
	return h.fn(ctx, event)
}

func newTestHandler(fn func(ctx context.Context, event any) error) Handler {
	return &testHandler{fn: fn}
}

func TestResult_IsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected bool
	}{
		{"success", Result{Success: true}, true},
		{"error", Result{Success: false, Error: errors.New("error")}, false},
		{"panic", Result{Success: false, Panicked: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsSuccess(); got != tt.expected {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResult_IsError(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected bool
	}{
		{"success", Result{Success: true}, false},
		{"error", Result{Success: false, Error: errors.New("error")}, true},
		{"panic", Result{Success: false, Panicked: true, PanicValue: "panic"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsError(); got != tt.expected {
				t.Errorf("IsError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSyncDispatcher_Dispatch_Success(t *testing.T) {
	d := NewSyncDispatcher()

	var received any
	handler := newTestHandler(func(ctx context.Context, event any) error {
		received = event
		return nil
	})

	result := d.Dispatch(context.Background(), "hello", handler)

	if !result.IsSuccess() {
		t.Fatalf("expected success, got %+v", result)
	}
	if received != "hello" {
		t.Errorf("handler received %v, want hello", received)
	}
	if result.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestSyncDispatcher_Dispatch_Error(t *testing.T) {
	d := NewSyncDispatcher()
	wantErr := errors.New("boom")

	result := d.Dispatch(context.Background(), 1, newTestHandler(func(ctx context.Context, event any) error {
		return wantErr
	}))

	if !result.IsError() {
		t.Fatalf("expected error result, got %+v", result)
	}
	if !errors.Is(result.Error, wantErr) {
		t.Errorf("Error = %v, want %v", result.Error, wantErr)
	}
}

func TestSyncDispatcher_Dispatch_Panic(t *testing.T) {
	var (
		gotEvent any
		gotValue any
		gotStack []byte
	)
	d := NewSyncDispatcher(WithPanicHandler(func(event any, panicValue any, stack []byte) {
		gotEvent = event
		gotValue = panicValue
		gotStack = stack
	}))

	result := d.Dispatch(context.Background(), "evt", newTestHandler(func(ctx context.Context, event any) error {
		panic("kaboom")
	}))

	if !result.IsPanic() {
		t.Fatalf("expected panic result, got %+v", result)
	}
	if result.PanicValue != "kaboom" {
		t.Errorf("PanicValue = %v, want kaboom", result.PanicValue)
	}
	if len(result.PanicStack) == 0 {
		t.Error("expected a captured stack")
	}
	if gotEvent != "evt" || gotValue != "kaboom" || len(gotStack) == 0 {
		t.Errorf("panic handler got (%v, %v, %d bytes)", gotEvent, gotValue, len(gotStack))
	}
}

func TestSyncDispatcher_PanickingPanicHandler(t *testing.T) {
	d := NewSyncDispatcher(WithPanicHandler(func(any, any, []byte) {
		panic("handler of last resort")
	}))

	result := d.Dispatch(context.Background(), "evt", newTestHandler(func(ctx context.Context, event any) error {
		panic("first")
	}))

	if !result.IsPanic() {
		t.Fatalf("expected panic result, got %+v", result)
	}
}

func TestSyncDispatcher_CancelledContextStillRuns(t *testing.T) {
	d := NewSyncDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	result := d.Dispatch(ctx, "evt", newTestHandler(func(ctx context.Context, event any) error {
		ran = true
		return nil
	}))

	if !ran || !result.IsSuccess() {
		t.Errorf("handler ran = %v, result = %+v", ran, result)
	}
}

func TestSyncDispatcher_Stats(t *testing.T) {
	d := NewSyncDispatcher()
	ctx := context.Background()

	ok := newTestHandler(func(context.Context, any) error { return nil })
	fail := newTestHandler(func(context.Context, any) error { return errors.New("x") })
	boom := newTestHandler(func(context.Context, any) error { panic("x") })

	d.Dispatch(ctx, 1, ok)
	d.Dispatch(ctx, 2, ok)
	d.Dispatch(ctx, 3, fail)
	d.Dispatch(ctx, 4, boom)

	stats := d.Stats()
	if stats.Dispatched != 4 {
		t.Errorf("Dispatched = %d, want 4", stats.Dispatched)
	}
	if stats.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", stats.Succeeded)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Panicked != 1 {
		t.Errorf("Panicked = %d, want 1", stats.Panicked)
	}

	d.ResetStats()
	if got := d.Stats(); got.Dispatched != 0 || got.Succeeded != 0 {
		t.Errorf("after ResetStats got %+v", got)
	}
}

func TestSyncDispatcher_Concurrent(t *testing.T) {
	d := NewSyncDispatcher()
	handler := newTestHandler(func(context.Context, any) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d.Dispatch(context.Background(), n, handler)
		}(i)
	}
	wg.Wait()

	if got := d.Stats().Dispatched; got != 50 {
		t.Errorf("Dispatched = %d, want 50", got)
	}
}
