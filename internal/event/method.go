package event

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// invokeFunc calls a subscriber method on the given subscriber instance.
type invokeFunc func(ctx context.Context, subscriber any, event any) error

// SubscriberMethod describes one event-handling method of a subscriber type.
// It is immutable and shared by every instance of that type.
type SubscriberMethod struct {
	// Name is the method name. Methods added with Subscribe are named funcN.
	Name string

	// Owner is the type that declared the method.
	Owner reflect.Type

	// EventType is the type of event the method accepts.
	EventType reflect.Type

	// Mode is the thread mode the method is invoked in.
	Mode ThreadMode

	invoke invokeFunc
}

// Invoke calls the method on subscriber with the given event.
func (m *SubscriberMethod) Invoke(ctx context.Context, subscriber, event any) error {
	return m.invoke(ctx, subscriber, event)
}

// String returns a readable form such as "*app.Screen.OnFrame(app.Frame)".
func (m *SubscriberMethod) String() string {
	return fmt.Sprintf("%v.%s(%v)", m.Owner, m.Name, m.EventType)
}

// key identifies the method within a subscriber type for de-duplication.
func (m *SubscriberMethod) key() string {
	return m.Name + ">" + m.EventType.String()
}

// newReflectMethod builds a SubscriberMethod from a method of a subscriber
// type. Eligible methods take the event as their only parameter, optionally
// preceded by a context.Context, and return nothing or a single error.
func newReflectMethod(owner reflect.Type, m reflect.Method, mode ThreadMode) (*SubscriberMethod, error) {
	ft := m.Type // includes the receiver as the first parameter
	if ft.IsVariadic() {
		return nil, fmt.Errorf("method %s is variadic", m.Name)
	}

	var withCtx bool
	switch ft.NumIn() {
	case 2:
	case 3:
		if ft.In(1) != contextType {
			return nil, fmt.Errorf("method %s: first of two parameters must be context.Context", m.Name)
		}
		withCtx = true
	default:
		return nil, fmt.Errorf("method %s must have exactly one event parameter, has %d", m.Name, ft.NumIn()-1)
	}

	eventType := ft.In(ft.NumIn() - 1)
	if eventType == contextType {
		return nil, fmt.Errorf("method %s: context.Context is not an event type", m.Name)
	}

	var hasErr bool
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) != errorType {
			return nil, fmt.Errorf("method %s must return nothing or error, returns %v", m.Name, ft.Out(0))
		}
		hasErr = true
	default:
		return nil, fmt.Errorf("method %s must return nothing or error, returns %d values", m.Name, ft.NumOut())
	}

	fn := m.Func
	invoke := func(ctx context.Context, subscriber any, event any) error {
		args := make([]reflect.Value, 0, 3)
		args = append(args, reflect.ValueOf(subscriber))
		if withCtx {
			args = append(args, reflect.ValueOf(&ctx).Elem())
		}
		args = append(args, reflect.ValueOf(event))

		out := fn.Call(args)
		if hasErr && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}

	return &SubscriberMethod{
		Name:      m.Name,
		Owner:     owner,
		EventType: eventType,
		Mode:      mode,
		invoke:    invoke,
	}, nil
}
