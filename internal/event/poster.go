package event

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/dshills/stickybus/internal/event/dispatch"
)

// Post delivers event to every active subscription of its type, in priority
// order. Each delivery runs on the execution context its thread mode names.
//
// Post returns the joined failures of the deliveries that ran inline on the
// calling goroutine, and any delivery that could not be queued. Failures of
// queued deliveries are logged and reported as SubscriberExceptionEvents but
// never returned. An event nobody subscribed to is not an error.
func (b *Bus) Post(ctx context.Context, event any) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if b.closed.Load() {
		return ErrBusClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := reflect.TypeOf(event)
	b.eventsPosted.Add(1)
	b.metrics.posted.Inc()

	var subs []*subscription
	if b.cfg.eventInheritance {
		subs = b.registry.LookupAssignable(t)
	} else {
		subs = b.registry.Lookup(t)
	}
	if len(subs) == 0 {
		b.noSubscriber(ctx, t, event)
		return nil
	}

	var errs []error
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if err := b.postToSubscription(ctx, sub, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// postToSubscription routes one delivery by the subscription's thread mode.
func (b *Bus) postToSubscription(ctx context.Context, sub *subscription, event any) error {
	if !sub.accepts(event) {
		return nil
	}

	switch mode := sub.method.Mode; mode {
	case PostThread:
		return b.deliver(ctx, sub, event)
	case MainThread:
		return b.enqueue(ctx, b.main, sub, event)
	case BackgroundThread:
		return b.enqueue(ctx, b.background, sub, event)
	case Async:
		return b.enqueue(ctx, b.async, sub, event)
	default:
		return fmt.Errorf("unknown thread mode %d for %v", int(mode), sub.method)
	}
}

// enqueue hands a delivery to a queued poster. The delivery's own failures
// are handled where it runs.
func (b *Bus) enqueue(ctx context.Context, q dispatch.Queue, sub *subscription, event any) error {
	err := q.Enqueue(ctx, event, dispatch.HandlerFunc(func(ctx context.Context, event any) error {
		_ = b.deliver(ctx, sub, event)
		return nil
	}))
	if err == nil {
		return nil
	}

	if errors.Is(err, dispatch.ErrNotRunning) {
		err = ErrBusClosed
	}
	mode := sub.method.Mode
	b.eventsDropped.Add(1)
	b.metrics.dropped.WithLabelValues(mode.String()).Inc()
	b.logger.Warnw("delivery dropped",
		"subscriber", fmt.Sprintf("%T", sub.subscriber),
		"method", sub.method.Name,
		"mode", mode.String(),
		"event", fmt.Sprintf("%T", event),
		"error", err,
	)
	return fmt.Errorf("enqueue %s delivery: %w", mode, err)
}

// deliver invokes the subscription on the current goroutine unless it was
// cancelled in the meantime.
func (b *Bus) deliver(ctx context.Context, sub *subscription, event any) error {
	if !sub.IsActive() {
		return nil
	}

	result := b.inline.Dispatch(ctx, event, sub)
	b.metrics.delivered(sub.method.Mode, result.Duration)
	if result.IsSuccess() {
		return nil
	}
	return b.subscriberFailed(ctx, sub, event, result)
}

// subscriberFailed reports a failed delivery and returns it as a *SubscriberError.
func (b *Bus) subscriberFailed(ctx context.Context, sub *subscription, event any, result dispatch.Result) error {
	cause := result.Error
	kind := "error"
	if result.Panicked {
		cause = &PanicError{Value: result.PanicValue, Stack: string(result.PanicStack)}
		kind = "panic"
	}

	mode := sub.method.Mode
	serr := &SubscriberError{
		SubscriptionID: sub.id,
		Subscriber:     sub.subscriber,
		Method:         sub.method.Name,
		Mode:           mode,
		EventType:      reflect.TypeOf(event),
		Err:            cause,
	}
	b.metrics.failed(mode, kind)

	if exc, ok := event.(SubscriberExceptionEvent); ok {
		if b.cfg.logSubscriberExceptions {
			b.logger.Errorw("SubscriberExceptionEvent subscriber failed",
				"subscriber", fmt.Sprintf("%T", sub.subscriber),
				"method", sub.method.Name,
				"error", cause,
				"original_error", exc.Err,
			)
		}
		return serr
	}

	if b.cfg.logSubscriberExceptions {
		b.logger.Errorw("subscriber failed",
			"subscriber", fmt.Sprintf("%T", sub.subscriber),
			"method", sub.method.Name,
			"mode", mode.String(),
			"event", serr.EventType.String(),
			"error", cause,
		)
	}
	if b.cfg.sendSubscriberExceptionEvent {
		_ = b.Post(ctx, SubscriberExceptionEvent{
			Bus:        b,
			Err:        serr,
			Event:      event,
			Subscriber: sub.subscriber,
		})
	}
	return serr
}

// noSubscriber reports a post that matched no subscription.
func (b *Bus) noSubscriber(ctx context.Context, t reflect.Type, event any) {
	b.noSubscribers.Add(1)
	b.metrics.noSubscribers.Inc()

	if b.cfg.logNoSubscriberMessages {
		b.logger.Debugw("no subscribers registered for event", "event", t.String())
	}
	if b.cfg.sendNoSubscriberEvent && t != noSubscriberEventType && t != subscriberExceptionEventType {
		_ = b.Post(ctx, NoSubscriberEvent{Bus: b, Event: event})
	}
}
