package event

import (
	"context"
	"reflect"
)

// Facade is the public surface of a bus. Host types embed it to expose the
// bus operations without exposing the Bus itself.
type Facade interface {
	Register(subscriber any) error
	RegisterWithPriority(subscriber any, priority Priority) error
	RegisterSticky(subscriber any) error
	RegisterStickyWithPriority(subscriber any, priority Priority) error
	IsRegistered(subscriber any) bool
	Unregister(subscriber any)

	Post(ctx context.Context, event any) error
	PostSticky(ctx context.Context, event any) error

	GetStickyEvent(t reflect.Type) (any, bool)
	RemoveStickyEvent(t reflect.Type) (any, bool)
	RemoveStickyEventValue(event any) bool
	RemoveAllStickyEvents()

	HasSubscriberForEvent(t reflect.Type) bool
}
