package event

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
)

// funcSeq numbers the methods created by Subscribe.
var funcSeq atomic.Uint64

// SubscribeOption configures a subscription created with Subscribe.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	mode     ThreadMode
	priority Priority
	sticky   bool
	filter   FilterFunc
}

// OnThread sets the thread mode. The default is PostThread.
func OnThread(m ThreadMode) SubscribeOption {
	return func(c *subscribeConfig) {
		c.mode = m
	}
}

// AtPriority sets the priority. The default is DefaultPriority.
func AtPriority(p Priority) SubscribeOption {
	return func(c *subscribeConfig) {
		c.priority = p
	}
}

// Sticky delivers the retained sticky event of type T, if any, as soon as the
// subscription is added.
func Sticky() SubscribeOption {
	return func(c *subscribeConfig) {
		c.sticky = true
	}
}

// WithFilter only delivers events the filter accepts.
func WithFilter(f FilterFunc) SubscribeOption {
	return func(c *subscribeConfig) {
		c.filter = f
	}
}

// Subscribe registers fn for events of type T without reflection-based
// method discovery. The subscription belongs to owner: Unregister(owner)
// removes it together with owner's other subscriptions, and
// IsRegistered(owner) reports it.
//
// If T is an interface type, fn receives events implementing T only when the
// bus has event inheritance enabled.
func Subscribe[T any](b *Bus, owner any, fn func(ctx context.Context, event T) error, opts ...SubscribeOption) (Subscription, error) {
	if owner == nil || fn == nil {
		return nil, ErrInvalidSubscription
	}
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if !reflect.ValueOf(owner).Comparable() {
		return nil, fmt.Errorf("subscribe %T: %w", owner, ErrUncomparableSubscriber)
	}

	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.mode.Valid() {
		return nil, fmt.Errorf("%w: unknown thread mode %d", ErrInvalidSubscription, int(cfg.mode))
	}

	m := &SubscriberMethod{
		Name:      fmt.Sprintf("func%d", funcSeq.Add(1)),
		Owner:     reflect.TypeOf(owner),
		EventType: reflect.TypeFor[T](),
		Mode:      cfg.mode,
		invoke: func(ctx context.Context, _ any, event any) error {
			return fn(ctx, event.(T))
		},
	}

	sub := newSubscription(owner, m, cfg.priority, cfg.filter)
	if !b.registry.Add(sub) {
		// Method names are unique, so this only happens on a name collision.
		return nil, fmt.Errorf("%w: duplicate method %s", ErrInvalidSubscription, m.Name)
	}
	b.metrics.subscriptions.Set(float64(b.registry.Count()))
	b.logger.Debugw("subscribed",
		"subscriber", fmt.Sprintf("%T", owner),
		"method", m.Name,
		"event", m.EventType.String(),
		"mode", m.Mode.String(),
		"priority", int(cfg.priority),
	)

	if cfg.sticky {
		if err := b.replaySticky(context.Background(), sub); err != nil {
			return sub, err
		}
	}
	return sub, nil
}

// SubscribeFunc is Subscribe for a handler that cannot fail.
func SubscribeFunc[T any](b *Bus, owner any, fn func(event T), opts ...SubscribeOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrInvalidSubscription
	}
	return Subscribe(b, owner, func(_ context.Context, event T) error {
		fn(event)
		return nil
	}, opts...)
}
