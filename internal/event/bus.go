package event

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/stickybus/internal/event/dispatch"
)

// MainLoop runs MainThread deliveries. A UI host supplies its own loop with
// WithMainLoop; by default the bus runs a dispatch.SerialDispatcher.
// The loop must run handlers one at a time.
type MainLoop interface {
	dispatch.Queue
}

// Bus routes posted events to registered subscribers and retains sticky
// events. It is safe for concurrent use. Create one with New and release its
// goroutines with Shutdown.
type Bus struct {
	cfg    busConfig
	logger *zap.SugaredLogger

	resolver Resolver
	registry *Registry
	sticky   *StickyStore
	metrics  *metrics

	// Posters
	inline     *dispatch.SyncDispatcher
	main       MainLoop
	ownMain    *dispatch.SerialDispatcher
	background *dispatch.SerialDispatcher
	async      *dispatch.AsyncDispatcher

	closed atomic.Bool

	// Stats
	eventsPosted  atomic.Uint64
	noSubscribers atomic.Uint64
	eventsDropped atomic.Uint64
}

var _ Facade = (*Bus)(nil)

// New creates a bus and starts its delivery goroutines.
func New(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.Named("event").With("bus", cfg.name)
	if cfg.resolver == nil {
		cfg.resolver = NewAnnotationResolver(WithResolverLogger(logger))
	}

	panicHandler := func(event any, panicValue any, _ []byte) {
		logger.Debugw("recovered subscriber panic", "event", fmt.Sprintf("%T", event), "panic", panicValue)
	}

	b := &Bus{
		cfg:      cfg,
		logger:   logger,
		resolver: cfg.resolver,
		registry: NewRegistry(),
		sticky:   NewStickyStore(),
		metrics:  newMetrics(cfg.registerer, cfg.name, logger),
		inline:   dispatch.NewSyncDispatcher(dispatch.WithPanicHandler(panicHandler)),
		background: dispatch.NewSerialDispatcher(
			dispatch.WithAsyncPanicHandler(panicHandler),
		),
		async: dispatch.NewAsyncDispatcher(
			dispatch.WithWorkerCount(cfg.asyncWorkerCount),
			dispatch.WithQueueSize(cfg.asyncQueueSize),
			dispatch.WithAsyncPanicHandler(panicHandler),
		),
	}

	b.main = cfg.mainLoop
	if b.main == nil {
		b.ownMain = dispatch.NewSerialDispatcher(dispatch.WithAsyncPanicHandler(panicHandler))
		b.ownMain.Start()
		b.main = b.ownMain
	}
	b.background.Start()
	b.async.Start()

	return b
}

// Name returns the bus name.
func (b *Bus) Name() string {
	return b.cfg.name
}

// Register registers all event methods of subscriber with DefaultPriority.
// Registering the same subscriber twice is a no-op. A nil subscriber is ignored.
func (b *Bus) Register(subscriber any) error {
	return b.register(subscriber, DefaultPriority, false)
}

// RegisterWithPriority registers subscriber with the given priority.
func (b *Bus) RegisterWithPriority(subscriber any, priority Priority) error {
	return b.register(subscriber, priority, false)
}

// RegisterSticky registers subscriber and immediately delivers the retained
// sticky event of each of its event types. Deliveries honor the methods'
// thread modes; PostThread deliveries complete before RegisterSticky returns
// and their failures are returned.
func (b *Bus) RegisterSticky(subscriber any) error {
	return b.register(subscriber, DefaultPriority, true)
}

// RegisterStickyWithPriority is RegisterSticky with the given priority.
func (b *Bus) RegisterStickyWithPriority(subscriber any, priority Priority) error {
	return b.register(subscriber, priority, true)
}

func (b *Bus) register(subscriber any, priority Priority, sticky bool) error {
	if subscriber == nil {
		return nil
	}
	if b.closed.Load() {
		return ErrBusClosed
	}
	if !reflect.ValueOf(subscriber).Comparable() {
		return fmt.Errorf("register %T: %w", subscriber, ErrUncomparableSubscriber)
	}

	methods, err := b.resolver.Resolve(subscriber)
	if err != nil {
		return fmt.Errorf("register %T: %w", subscriber, err)
	}
	if len(methods) == 0 {
		b.logger.Debugw("subscriber declares no event methods", "subscriber", fmt.Sprintf("%T", subscriber))
		return nil
	}

	return b.subscribe(context.Background(), subscriber, methods, priority, sticky, nil)
}

// subscribe adds one subscription per method and, for sticky registrations,
// replays retained events to the subscriptions that were actually added.
func (b *Bus) subscribe(ctx context.Context, owner any, methods []*SubscriberMethod, priority Priority, sticky bool, filter FilterFunc) error {
	added := make([]*subscription, 0, len(methods))
	for _, m := range methods {
		sub := newSubscription(owner, m, priority, filter)
		if !b.registry.Add(sub) {
			continue
		}
		added = append(added, sub)
		b.logger.Debugw("subscribed",
			"subscriber", fmt.Sprintf("%T", owner),
			"method", m.Name,
			"event", m.EventType.String(),
			"mode", m.Mode.String(),
			"priority", int(priority),
		)
	}
	b.metrics.subscriptions.Set(float64(b.registry.Count()))

	if !sticky {
		return nil
	}
	var errs []error
	for _, sub := range added {
		if err := b.replaySticky(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// replaySticky delivers the retained sticky events matching sub's event type.
func (b *Bus) replaySticky(ctx context.Context, sub *subscription) error {
	want := sub.method.EventType
	if !b.cfg.eventInheritance {
		event, ok := b.sticky.Get(want)
		if !ok {
			return nil
		}
		return b.postToSubscription(ctx, sub, event)
	}

	var errs []error
	for _, e := range b.sticky.Snapshot() {
		if !e.Type.AssignableTo(want) {
			continue
		}
		if err := b.postToSubscription(ctx, sub, e.Event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsRegistered reports whether subscriber has at least one subscription.
func (b *Bus) IsRegistered(subscriber any) bool {
	if subscriber == nil || !reflect.ValueOf(subscriber).Comparable() {
		return false
	}
	return b.registry.IsRegistered(subscriber)
}

// Unregister removes every subscription of subscriber. No delivery to it
// starts after Unregister returns; a delivery already running may complete.
// Unregistering an unknown subscriber is a no-op.
func (b *Bus) Unregister(subscriber any) {
	if subscriber == nil || !reflect.ValueOf(subscriber).Comparable() {
		return
	}
	removed := b.registry.RemoveOwner(subscriber)
	if len(removed) == 0 {
		b.logger.Debugw("unregister of unknown subscriber", "subscriber", fmt.Sprintf("%T", subscriber))
		return
	}
	b.metrics.subscriptions.Set(float64(b.registry.Count()))
}

// HasSubscriberForEvent reports whether a subscription exists for exactly
// type t. Interface subscriptions that would receive t under event
// inheritance are not considered.
func (b *Bus) HasSubscriberForEvent(t reflect.Type) bool {
	if t == nil {
		return false
	}
	return b.registry.HasSubscriberForEvent(t)
}

// PostSticky retains event as the sticky event of its type, then posts it.
func (b *Bus) PostSticky(ctx context.Context, event any) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if b.closed.Load() {
		return ErrBusClosed
	}
	b.sticky.Put(event)
	b.metrics.sticky.Set(float64(b.sticky.Len()))
	return b.Post(ctx, event)
}

// GetStickyEvent returns the retained sticky event of type t.
func (b *Bus) GetStickyEvent(t reflect.Type) (any, bool) {
	return b.sticky.Get(t)
}

// RemoveStickyEvent removes and returns the retained sticky event of type t.
func (b *Bus) RemoveStickyEvent(t reflect.Type) (any, bool) {
	e, ok := b.sticky.Remove(t)
	b.metrics.sticky.Set(float64(b.sticky.Len()))
	return e, ok
}

// RemoveStickyEventValue removes the retained sticky event of event's type
// only if it equals event.
func (b *Bus) RemoveStickyEventValue(event any) bool {
	if event == nil {
		return false
	}
	ok := b.sticky.RemoveExact(event)
	b.metrics.sticky.Set(float64(b.sticky.Len()))
	return ok
}

// RemoveAllStickyEvents drops every retained sticky event.
func (b *Bus) RemoveAllStickyEvents() {
	b.sticky.Clear()
	b.metrics.sticky.Set(0)
}

// StickyEvent returns the retained sticky event of type T.
func StickyEvent[T any](b *Bus) (T, bool) {
	e, ok := b.sticky.Get(reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return e.(T), true
}

// RemoveSticky removes and returns the retained sticky event of type T.
func RemoveSticky[T any](b *Bus) (T, bool) {
	e, ok := b.RemoveStickyEvent(reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return e.(T), true
}

// ClearCaches drops the resolver's cached subscriber methods.
func (b *Bus) ClearCaches() {
	b.resolver.ClearCache()
}

// Shutdown stops accepting posts and registrations, then drains the queued
// deliveries or gives up when ctx is done. A host-supplied main loop is left
// running. Calling Shutdown again is a no-op.
func (b *Bus) Shutdown(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error { return b.background.Stop(ctx) })
	g.Go(func() error { return b.async.Stop(ctx) })
	if b.ownMain != nil {
		g.Go(func() error { return b.ownMain.Stop(ctx) })
	}
	err := g.Wait()

	b.metrics.unregister(b.cfg.registerer)
	if err != nil {
		b.logger.Warnw("bus shutdown incomplete", "error", err)
		return fmt.Errorf("shutdown bus %s: %w", b.cfg.name, err)
	}
	b.logger.Debugw("bus shut down")
	return nil
}

// IsClosed reports whether Shutdown has been called.
func (b *Bus) IsClosed() bool {
	return b.closed.Load()
}

// Stats returns bus statistics.
// Values are read without a common lock and may be slightly inconsistent.
func (b *Bus) Stats() Stats {
	ds := b.inline.Stats()
	s := Stats{
		EventsPosted:             b.eventsPosted.Load(),
		EventsWithoutSubscribers: b.noSubscribers.Load(),
		Deliveries:               ds.Dispatched,
		Failures:                 ds.Failed,
		Panics:                   ds.Panicked,
		Dropped:                  b.eventsDropped.Load(),
		AvgDeliveryTimeNs:        ds.AvgDuration.Nanoseconds(),
		Subscriptions:            b.registry.Count(),
		StickyEvents:             b.sticky.Len(),
		BackgroundQueueDepth:     b.background.QueueDepth(),
		AsyncQueueDepth:          b.async.QueueDepth(),
	}
	if b.ownMain != nil {
		s.MainQueueDepth = b.ownMain.QueueDepth()
	}
	return s
}
