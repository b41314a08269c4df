package event

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"
)

type testEvent struct{ N int }

type otherEvent struct{ Name string }

// recorder collects strings from concurrent subscribers.
type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.items = append(r.items, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// named records its name for every testEvent.
type named struct {
	name string
	rec  *recorder
}

func (n *named) EventMethods() []Annotation {
	return []Annotation{{Method: "OnTest", Mode: PostThread}}
}

func (n *named) OnTest(e testEvent) { n.rec.add(n.name) }

// valueSub records the testEvent values it receives.
type valueSub struct {
	mu  sync.Mutex
	got []testEvent
}

func (v *valueSub) EventMethods() []Annotation {
	return []Annotation{{Method: "OnTest"}}
}

func (v *valueSub) OnTest(e testEvent) {
	v.mu.Lock()
	v.got = append(v.got, e)
	v.mu.Unlock()
}

func (v *valueSub) events() []testEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.got)
}

// failing returns err (or panics with it when panics is set) for every testEvent.
type failing struct {
	err    error
	panics bool
}

func (f *failing) EventMethods() []Annotation {
	return []Annotation{{Method: "OnTest"}}
}

func (f *failing) OnTest(e testEvent) error {
	if f.panics {
		panic(f.err)
	}
	return f.err
}

type delivery struct {
	ctx   context.Context
	event testEvent
}

// threadSub forwards deliveries to a channel. It is embedded by one
// subscriber type per thread mode.
type threadSub struct {
	got chan delivery
}

func (s *threadSub) OnTest(ctx context.Context, e testEvent) {
	s.got <- delivery{ctx: ctx, event: e}
}

type mainSub struct{ threadSub }

func (*mainSub) EventMethods() []Annotation {
	return []Annotation{{Method: "OnTest", Mode: MainThread}}
}

type backgroundSub struct{ threadSub }

func (*backgroundSub) EventMethods() []Annotation {
	return []Annotation{{Method: "OnTest", Mode: BackgroundThread}}
}

type asyncSub struct{ threadSub }

func (*asyncSub) EventMethods() []Annotation {
	return []Annotation{{Method: "OnTest", Mode: Async}}
}

func newThreadSub() threadSub {
	return threadSub{got: make(chan delivery, 64)}
}

// plain declares no event methods.
type plain struct{ X int }

// newTestBus returns a bus that is shut down when the test ends.
func newTestBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	b := New(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() failed: %v", err)
		}
	})
	return b
}

func mustRegister(t *testing.T, b *Bus, subscriber any) {
	t.Helper()
	if err := b.Register(subscriber); err != nil {
		t.Fatalf("Register(%T) failed: %v", subscriber, err)
	}
}

func mustRegisterWithPriority(t *testing.T, b *Bus, subscriber any, priority Priority) {
	t.Helper()
	if err := b.RegisterWithPriority(subscriber, priority); err != nil {
		t.Fatalf("RegisterWithPriority(%T, %d) failed: %v", subscriber, priority, err)
	}
}

func mustRegisterSticky(t *testing.T, b *Bus, subscriber any) {
	t.Helper()
	if err := b.RegisterSticky(subscriber); err != nil {
		t.Fatalf("RegisterSticky(%T) failed: %v", subscriber, err)
	}
}

func mustRegisterStickyWithPriority(t *testing.T, b *Bus, subscriber any, priority Priority) {
	t.Helper()
	if err := b.RegisterStickyWithPriority(subscriber, priority); err != nil {
		t.Fatalf("RegisterStickyWithPriority(%T, %d) failed: %v", subscriber, priority, err)
	}
}

// receive waits for one delivery on ch.
func receive(t *testing.T, ch <-chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(time.Second):
		t.Fatal("no delivery within timeout")
		return delivery{}
	}
}

// expectNone fails if ch delivers within a short grace period.
func expectNone(t *testing.T, ch <-chan delivery) {
	t.Helper()
	select {
	case d := <-ch:
		t.Fatalf("unexpected delivery %+v", d.event)
	case <-time.After(50 * time.Millisecond):
	}
}

// testMethod builds a SubscriberMethod that does nothing.
func testMethod(name string, eventType reflect.Type) *SubscriberMethod {
	return &SubscriberMethod{
		Name:      name,
		Owner:     reflect.TypeFor[*named](),
		EventType: eventType,
		invoke:    func(context.Context, any, any) error { return nil },
	}
}

var errTest = errors.New("test failure")
