package event

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/creachadair/taskgroup"
	"github.com/google/go-cmp/cmp"
)

// mixed exercises method eligibility.
type mixed struct{}

func (*mixed) EventMethods() []Annotation {
	return []Annotation{
		{Method: "OnPlain", Mode: PostThread},
		{Method: "OnCtx", Mode: BackgroundThread},
		{Method: "OnTwoArgs"},
		{Method: "OnReturnsInt"},
		{Method: "OnVariadic"},
		{Method: "OnContextOnly"},
		{Method: "Missing"},
		{Method: "OnPlain", Mode: ThreadMode(42)},
		{Method: "onHidden"},
		{Method: "OnPlain", Mode: Async}, // duplicate, first wins
	}
}

func (*mixed) OnPlain(e testEvent)                           {}
func (*mixed) OnCtx(ctx context.Context, e otherEvent) error { return nil }
func (*mixed) OnTwoArgs(a testEvent, b otherEvent)           {}
func (*mixed) OnReturnsInt(e testEvent) int                  { return 0 }
func (*mixed) OnVariadic(e ...testEvent)                     {}
func (*mixed) OnContextOnly(ctx context.Context)             {}
func (*mixed) onHidden(e testEvent)                          {} //nolint:unused

// base is embedded by derived.
type base struct{}

func (base) EventMethods() []Annotation {
	return []Annotation{
		{Method: "OnBase", Mode: Async},
		{Method: "OnShared", Mode: Async},
	}
}

func (*base) OnBase(e otherEvent)  {}
func (*base) OnShared(e testEvent) {}

type derived struct {
	base
	sync.Mutex // standard library types are never scanned
}

func (*derived) EventMethods() []Annotation {
	return []Annotation{
		{Method: "OnShared", Mode: MainThread},
	}
}

type panicky struct{}

func (*panicky) EventMethods() []Annotation { panic("no annotations today") }
func (*panicky) OnTest(e testEvent)         {}

func methodSummary(ms []*SubscriberMethod) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name + "(" + m.EventType.String() + ")/" + m.Mode.String()
	}
	return out
}

func TestAnnotationResolver_Eligibility(t *testing.T) {
	r := NewAnnotationResolver()

	methods, err := r.Resolve(&mixed{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	want := []string{
		"OnPlain(event.testEvent)/post",
		"OnCtx(event.otherEvent)/background",
	}
	if diff := cmp.Diff(want, methodSummary(methods)); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
	for _, m := range methods {
		if m.Owner != reflect.TypeFor[*mixed]() {
			t.Errorf("%s owner = %v, want *event.mixed", m.Name, m.Owner)
		}
	}
}

func TestAnnotationResolver_EmbeddedTypes(t *testing.T) {
	r := NewAnnotationResolver()

	methods, err := r.Resolve(&derived{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	want := []string{
		"OnShared(event.testEvent)/main",
		"OnBase(event.otherEvent)/async",
	}
	if diff := cmp.Diff(want, methodSummary(methods)); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
	if got := methods[1].Owner; got != reflect.TypeFor[base]() {
		t.Errorf("OnBase owner = %v, want event.base", got)
	}
}

func TestAnnotationResolver_Boundary(t *testing.T) {
	r := NewAnnotationResolver(WithBoundary(StopAt(reflect.TypeFor[base]())))

	methods, err := r.Resolve(&derived{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	want := []string{"OnShared(event.testEvent)/main"}
	if diff := cmp.Diff(want, methodSummary(methods)); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultBoundary(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want bool
	}{
		{"stdlib struct", reflect.TypeFor[sync.Mutex](), true},
		{"stdlib pointer", reflect.TypeFor[*bytes.Buffer](), true},
		{"builtin", reflect.TypeFor[int](), true},
		{"unnamed", reflect.TypeFor[struct{ X int }](), true},
		{"module type", reflect.TypeFor[testEvent](), false},
		{"module pointer", reflect.TypeFor[*derived](), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultBoundary(tt.typ); got != tt.want {
				t.Errorf("DefaultBoundary(%v) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestIsStdlibPackage(t *testing.T) {
	modules := []string{"example/app", "myco", "github.com/acme/lib"}
	tests := []struct {
		pkg  string
		want bool
	}{
		{"net/http", true},
		{"sync", true},
		{"example/app", false},
		{"example/app/internal/ui", false},
		{"myco/billing", false},
		{"mycompany/tools", true},
		{"github.com/acme/lib/x", false},
		{"github.com/other/pkg", false},
	}

	for _, tt := range tests {
		if got := isStdlibPackage(tt.pkg, modules); got != tt.want {
			t.Errorf("isStdlibPackage(%q) = %v, want %v", tt.pkg, got, tt.want)
		}
	}
	if isStdlibPackage("example/app", nil) != true {
		t.Error("without build info a dotless path should count as standard library")
	}
}

func TestAnnotationResolver_Caching(t *testing.T) {
	r := NewAnnotationResolver()

	first, _ := r.Resolve(&named{})
	second, _ := r.Resolve(&named{name: "other"})

	if r.Scans() != 1 {
		t.Errorf("Scans() = %d, want 1", r.Scans())
	}
	if len(first) != 1 || first[0] != second[0] {
		t.Error("expected the cached methods to be shared across instances")
	}

	r.ClearCache()
	r.Resolve(&named{})
	if r.Scans() != 2 {
		t.Errorf("Scans() after ClearCache = %d, want 2", r.Scans())
	}
}

func TestAnnotationResolver_EmptyNotCached(t *testing.T) {
	r := NewAnnotationResolver()

	for i := 0; i < 3; i++ {
		methods, err := r.Resolve(&plain{})
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		if len(methods) != 0 {
			t.Fatalf("Resolve() returned %d methods, want 0", len(methods))
		}
	}
	if r.Scans() != 3 {
		t.Errorf("Scans() = %d, want 3", r.Scans())
	}
}

func TestAnnotationResolver_PanickingEventMethods(t *testing.T) {
	r := NewAnnotationResolver()

	methods, err := r.Resolve(&panicky{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if len(methods) != 0 {
		t.Errorf("Resolve() returned %d methods, want 0", len(methods))
	}
}

func TestAnnotationResolver_ConcurrentResolve(t *testing.T) {
	r := NewAnnotationResolver()

	var (
		mu      sync.Mutex
		results [][]*SubscriberMethod
	)
	var g taskgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			ms, err := r.Resolve(&named{})
			mu.Lock()
			results = append(results, ms)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	for _, ms := range results {
		if len(ms) != 1 || ms[0] != results[0][0] {
			t.Fatal("concurrent resolutions returned different method sets")
		}
	}
	if n := r.Scans(); n < 1 || n > 20 {
		t.Errorf("Scans() = %d, want between 1 and 20", n)
	}
}

func TestSubscriberMethod_Invoke(t *testing.T) {
	r := NewAnnotationResolver()
	methods, _ := r.Resolve(&failing{err: errTest})

	err := methods[0].Invoke(context.Background(), &failing{err: errTest}, testEvent{})
	if !errors.Is(err, errTest) {
		t.Errorf("Invoke() = %v, want %v", err, errTest)
	}

	err = methods[0].Invoke(context.Background(), &failing{}, testEvent{})
	if err != nil {
		t.Errorf("Invoke() = %v, want nil", err)
	}
}

func TestSubscriberMethod_InvokePassesContext(t *testing.T) {
	r := NewAnnotationResolver()
	sub := &mainSub{newThreadSub()}
	methods, _ := r.Resolve(sub)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	if err := methods[0].Invoke(ctx, sub, testEvent{N: 7}); err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}

	d := receive(t, sub.got)
	if d.ctx.Value(key{}) != "v" || d.event.N != 7 {
		t.Errorf("got ctx value %v event %+v", d.ctx.Value(key{}), d.event)
	}
}

// legacy follows the OnEvent naming convention.
type legacy struct{}

func (*legacy) OnEvent(e testEvent)                           {}
func (*legacy) OnEventMainThread(e otherEvent)                {}
func (*legacy) OnEventBackgroundThreadSave(e *testEvent)      {}
func (*legacy) OnEventAsync(ctx context.Context, e int) error { return nil }
func (*legacy) OnEventLater(e string)                         {}
func (*legacy) OnEventTwoArgs(a, b int)                       {}
func (*legacy) Unrelated(e testEvent)                         {}

type legacyChild struct {
	legacy
}

func (*legacyChild) OnEventChild(e float64) {}

func TestNamingResolver_Modes(t *testing.T) {
	r := NewNamingResolver()

	methods, err := r.Resolve(&legacy{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	// reflect lists methods in lexicographic order.
	want := []string{
		"OnEvent(event.testEvent)/post",
		"OnEventAsync(int)/async",
		"OnEventBackgroundThreadSave(*event.testEvent)/background",
		"OnEventLater(string)/post",
		"OnEventMainThread(event.otherEvent)/main",
	}
	if diff := cmp.Diff(want, methodSummary(methods)); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestNamingResolver_EmbeddedMethods(t *testing.T) {
	r := NewNamingResolver()

	methods, err := r.Resolve(&legacyChild{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if len(methods) != 6 {
		t.Errorf("Resolve() returned %d methods, want 6: %v", len(methods), methodSummary(methods))
	}
}

func TestNamingResolver_NoMethods(t *testing.T) {
	r := NewNamingResolver()

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(&plain{})
		if !errors.Is(err, ErrNoSubscriberMethods) {
			t.Fatalf("Resolve() = %v, want ErrNoSubscriberMethods", err)
		}
	}
	if r.Scans() != 2 {
		t.Errorf("Scans() = %d, want 2", r.Scans())
	}
}

func TestNamingResolver_Caching(t *testing.T) {
	r := NewNamingResolver()
	r.Resolve(&legacy{})
	r.Resolve(&legacy{})
	if r.Scans() != 1 {
		t.Errorf("Scans() = %d, want 1", r.Scans())
	}
}
