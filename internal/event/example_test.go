package event_test

import (
	"context"
	"fmt"

	"github.com/dshills/stickybus/internal/event"
)

type Temperature struct{ Celsius float64 }

type Display struct{ label string }

func (*Display) EventMethods() []event.Annotation {
	return []event.Annotation{{Method: "OnTemperature", Mode: event.PostThread}}
}

func (d *Display) OnTemperature(t Temperature) {
	fmt.Printf("%s: %.1f°C\n", d.label, t.Celsius)
}

func Example() {
	bus := event.New()
	defer bus.Shutdown(context.Background())

	ctx := context.Background()
	bus.PostSticky(ctx, Temperature{Celsius: 21.5})

	// A sticky registration sees the last reading immediately.
	bus.RegisterSticky(&Display{label: "hall"})
	bus.Post(ctx, Temperature{Celsius: 22})

	// Output:
	// hall: 21.5°C
	// hall: 22.0°C
}

func ExampleSubscribeFunc() {
	bus := event.New()
	defer bus.Shutdown(context.Background())

	owner := &struct{ name string }{name: "logger"}
	event.SubscribeFunc(bus, owner, func(t Temperature) {
		fmt.Println("high:", t.Celsius)
	}, event.WithFilter(event.FilterPayload(func(t Temperature) bool { return t.Celsius > 30 })))

	ctx := context.Background()
	bus.Post(ctx, Temperature{Celsius: 25})
	bus.Post(ctx, Temperature{Celsius: 31})

	bus.Unregister(owner)
	bus.Post(ctx, Temperature{Celsius: 35})

	// Output:
	// high: 31
}

func ExampleStickyEvent() {
	bus := event.New()
	defer bus.Shutdown(context.Background())

	bus.PostSticky(context.Background(), Temperature{Celsius: 19})

	if t, ok := event.StickyEvent[Temperature](bus); ok {
		fmt.Println(t.Celsius)
	}
	event.RemoveSticky[Temperature](bus)
	_, ok := event.StickyEvent[Temperature](bus)
	fmt.Println(ok)

	// Output:
	// 19
	// false
}
