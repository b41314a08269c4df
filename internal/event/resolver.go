package event

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Resolver discovers the event methods of a subscriber.
type Resolver interface {
	// Resolve returns the event methods of subscriber's concrete type.
	// The returned slice is shared and must not be modified.
	Resolve(subscriber any) ([]*SubscriberMethod, error)

	// ClearCache drops every cached resolution.
	ClearCache()
}

// Annotation declares one event method of a subscriber type.
type Annotation struct {
	// Method is the name of an exported method in the subscriber's method set.
	Method string

	// Mode is the thread mode the method is invoked in.
	Mode ThreadMode
}

// Annotated is implemented by subscriber types that declare their event
// methods for the AnnotationResolver. Types embedded in a subscriber may
// implement it too; their annotations are collected after the outer type's.
//
// Results are cached per type, so EventMethods must return the same list for
// every value of the type. It is also called on zero values of embedded types.
type Annotated interface {
	EventMethods() []Annotation
}

// BoundaryFunc reports whether the declaring-type walk should stop at t
// instead of scanning it and the types embedded in it.
type BoundaryFunc func(t reflect.Type) bool

// DefaultBoundary stops at unnamed types and types declared in the Go
// standard library. Types declared in package main are always scanned.
//
// A package counts as standard library when the first element of its path
// has no dot and it does not belong to the main module or one of its
// dependencies, as recorded in the binary's build info. Binaries built
// without module information fall back to the dot rule alone, so types from
// dotless module paths need a custom boundary set with WithBoundary.
func DefaultBoundary(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return true
	}
	pkg := t.PkgPath()
	switch pkg {
	case "":
		return true
	case "main":
		return false
	}
	return isStdlibPackage(pkg, modulePaths())
}

// modulePaths lists the main module and its dependencies.
var modulePaths = sync.OnceValue(func() []string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		paths = append(paths, info.Main.Path)
	}
	for _, dep := range info.Deps {
		paths = append(paths, dep.Path)
	}
	return paths
})

func isStdlibPackage(pkg string, modules []string) bool {
	for _, m := range modules {
		if pkg == m || strings.HasPrefix(pkg, m+"/") {
			return false
		}
	}
	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}

// StopAt returns a boundary that stops at the given types in addition to the
// DefaultBoundary ones. A pointer type and its element type are treated alike.
func StopAt(types ...reflect.Type) BoundaryFunc {
	stop := make(map[reflect.Type]bool, len(types))
	for _, t := range types {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		stop[t] = true
	}
	return func(t reflect.Type) bool {
		base := t
		if base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		return stop[base] || DefaultBoundary(t)
	}
}

// ResolverOption configures a resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	boundary BoundaryFunc
	logger   *zap.SugaredLogger
}

// WithBoundary sets the predicate that ends the declaring-type walk.
func WithBoundary(f BoundaryFunc) ResolverOption {
	return func(c *resolverConfig) {
		if f != nil {
			c.boundary = f
		}
	}
}

// WithResolverLogger sets the logger used for skipped methods.
func WithResolverLogger(l *zap.SugaredLogger) ResolverOption {
	return func(c *resolverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newResolverConfig(opts []ResolverOption) resolverConfig {
	c := resolverConfig{
		boundary: DefaultBoundary,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// methodCache maps concrete subscriber types to their resolved methods.
// Entries are written at most once per type until cleared.
type methodCache struct {
	mu      sync.Mutex
	entries map[reflect.Type][]*SubscriberMethod
	scans   atomic.Int64
}

func (c *methodCache) get(t reflect.Type) ([]*SubscriberMethod, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[t]
	return m, ok
}

// store records methods for t unless another goroutine got there first, and
// returns whichever result is cached.
func (c *methodCache) store(t reflect.Type, methods []*SubscriberMethod) []*SubscriberMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[t]; ok {
		return existing
	}
	if c.entries == nil {
		c.entries = make(map[reflect.Type][]*SubscriberMethod)
	}
	c.entries[t] = methods
	return methods
}

// ClearCache drops every cached resolution.
func (c *methodCache) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// Scans returns how many times a subscriber type has been scanned.
func (c *methodCache) Scans() int64 {
	return c.scans.Load()
}

// declaringTypes lists t followed by the types embedded in it, depth first in
// field order. A type the boundary stops at is left out together with
// everything embedded in it; t itself is always included.
func declaringTypes(t reflect.Type, boundary BoundaryFunc) []reflect.Type {
	out := []reflect.Type{t}
	seen := map[reflect.Type]bool{baseType(t): true}

	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		st := baseType(t)
		if st.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !f.Anonymous {
				continue
			}
			base := baseType(f.Type)
			if seen[base] || boundary(f.Type) {
				continue
			}
			seen[base] = true
			out = append(out, f.Type)
			walk(f.Type)
		}
	}
	walk(t)
	return out
}

func baseType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// methodSet collects resolved methods, keeping the first of each name and
// event type pair.
type methodSet struct {
	seen    map[string]bool
	methods []*SubscriberMethod
}

func (s *methodSet) add(m *SubscriberMethod) bool {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	k := m.key()
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	s.methods = append(s.methods, m)
	return true
}

// AnnotationResolver resolves subscriber methods from the Annotations a
// subscriber type declares through Annotated. A type declaring no methods is
// not an error; it simply registers nothing.
//
// Results with at least one method are cached per concrete type. Types that
// resolve to nothing are scanned again on every call.
type AnnotationResolver struct {
	methodCache
	cfg resolverConfig
}

// NewAnnotationResolver creates a metadata-based resolver.
func NewAnnotationResolver(opts ...ResolverOption) *AnnotationResolver {
	return &AnnotationResolver{cfg: newResolverConfig(opts)}
}

// Resolve implements Resolver.
func (r *AnnotationResolver) Resolve(subscriber any) ([]*SubscriberMethod, error) {
	t := reflect.TypeOf(subscriber)
	if t == nil {
		return nil, nil
	}
	if methods, ok := r.get(t); ok {
		return methods, nil
	}

	methods := r.scan(subscriber, t)
	if len(methods) == 0 {
		return nil, nil
	}
	return r.store(t, methods), nil
}

func (r *AnnotationResolver) scan(subscriber any, t reflect.Type) []*SubscriberMethod {
	r.scans.Add(1)

	var set methodSet
	for _, dt := range declaringTypes(t, r.cfg.boundary) {
		var annotations []Annotation
		if dt == t {
			annotations = r.annotations(subscriber, dt)
		} else {
			annotations = r.annotations(reflect.New(baseType(dt)).Interface(), dt)
		}

		for _, a := range annotations {
			if !a.Mode.Valid() {
				r.cfg.logger.Debugw("skipping annotation with unknown thread mode",
					"subscriber", t.String(), "method", a.Method, "mode", int(a.Mode))
				continue
			}
			m, ok := t.MethodByName(a.Method)
			if !ok {
				r.cfg.logger.Debugw("annotated method not in method set",
					"subscriber", t.String(), "method", a.Method)
				continue
			}
			sm, err := newReflectMethod(dt, m, a.Mode)
			if err != nil {
				r.cfg.logger.Debugw("skipping ineligible method",
					"subscriber", t.String(), "error", err)
				continue
			}
			set.add(sm)
		}
	}
	return set.methods
}

// annotations calls EventMethods on v, treating a panic as no annotations.
func (r *AnnotationResolver) annotations(v any, declaring reflect.Type) (out []Annotation) {
	a, ok := v.(Annotated)
	if !ok {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			r.cfg.logger.Warnw("EventMethods panicked", "type", declaring.String(), "panic", p)
			out = nil
		}
	}()
	return a.EventMethods()
}

// namingPrefix starts every event method name recognized by NamingResolver.
const namingPrefix = "OnEvent"

// NamingResolver resolves subscriber methods by name: every exported method
// whose name starts with "OnEvent". The rest of the name selects the mode:
// "MainThread", "BackgroundThread" and "Async" prefixes pick those modes and
// anything else is PostThread. For example OnEventAsync(Download) runs on the
// worker pool.
//
// Deprecated: declare methods with Annotated and use AnnotationResolver.
// NamingResolver is kept for subscribers written against the naming
// convention. Unlike AnnotationResolver it fails for types without methods.
type NamingResolver struct {
	methodCache
	cfg resolverConfig
}

// NewNamingResolver creates a naming-convention resolver.
func NewNamingResolver(opts ...ResolverOption) *NamingResolver {
	return &NamingResolver{cfg: newResolverConfig(opts)}
}

// Resolve implements Resolver.
func (r *NamingResolver) Resolve(subscriber any) ([]*SubscriberMethod, error) {
	t := reflect.TypeOf(subscriber)
	if t == nil {
		return nil, fmt.Errorf("%w: nil subscriber", ErrNoSubscriberMethods)
	}
	if methods, ok := r.get(t); ok {
		return methods, nil
	}

	methods := r.scan(t)
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: %v has no exported methods named %s*", ErrNoSubscriberMethods, t, namingPrefix)
	}
	return r.store(t, methods), nil
}

func (r *NamingResolver) scan(t reflect.Type) []*SubscriberMethod {
	r.scans.Add(1)

	var set methodSet
	for _, dt := range declaringTypes(t, r.cfg.boundary) {
		mt := dt
		if dt != t && dt.Kind() != reflect.Pointer && dt.Kind() != reflect.Interface {
			mt = reflect.PointerTo(dt)
		}
		for i := 0; i < mt.NumMethod(); i++ {
			name := mt.Method(i).Name
			if !strings.HasPrefix(name, namingPrefix) {
				continue
			}
			m, ok := t.MethodByName(name)
			if !ok {
				r.cfg.logger.Debugw("naming method not reachable from subscriber",
					"subscriber", t.String(), "method", name)
				continue
			}
			sm, err := newReflectMethod(dt, m, namingMode(name))
			if err != nil {
				r.cfg.logger.Debugw("skipping ineligible method",
					"subscriber", t.String(), "error", err)
				continue
			}
			set.add(sm)
		}
	}
	return set.methods
}

func namingMode(name string) ThreadMode {
	rest := strings.TrimPrefix(name, namingPrefix)
	switch {
	case strings.HasPrefix(rest, "MainThread"):
		return MainThread
	case strings.HasPrefix(rest, "BackgroundThread"):
		return BackgroundThread
	case strings.HasPrefix(rest, "Async"):
		return Async
	default:
		return PostThread
	}
}
