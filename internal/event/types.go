package event

import (
	"fmt"
	"strings"
)

// ThreadMode selects the execution context a subscriber method is invoked on.
type ThreadMode int

const (
	// PostThread invokes the subscriber on the goroutine that posted the event,
	// before Post returns. This is the default mode.
	PostThread ThreadMode = iota

	// MainThread invokes the subscriber on the bus's main loop. Deliveries are
	// always queued, including those posted from the main loop itself.
	MainThread

	// BackgroundThread invokes the subscriber on a single shared background
	// goroutine. Background deliveries of one bus never run concurrently and
	// run in the order they were posted.
	BackgroundThread

	// Async invokes the subscriber on a worker pool. Async deliveries may run
	// concurrently and in any order.
	Async
)

// String returns the configuration name of the mode.
func (m ThreadMode) String() string {
	switch m {
	case PostThread:
		return "post"
	case MainThread:
		return "main"
	case BackgroundThread:
		return "background"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the defined modes.
func (m ThreadMode) Valid() bool {
	return m >= PostThread && m <= Async
}

// ParseThreadMode parses a mode name as produced by ThreadMode.String.
// Matching is case-insensitive and the empty string parses as PostThread.
func ParseThreadMode(s string) (ThreadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "post", "posting":
		return PostThread, nil
	case "main":
		return MainThread, nil
	case "background":
		return BackgroundThread, nil
	case "async":
		return Async, nil
	default:
		return PostThread, fmt.Errorf("unknown thread mode %q", s)
	}
}

// ThreadModes lists every mode in declaration order.
func ThreadModes() []ThreadMode {
	return []ThreadMode{PostThread, MainThread, BackgroundThread, Async}
}

// Priority determines the order in which subscribers of one event type are
// visited during a post. Higher values are visited first. Subscribers with
// equal priority are visited in registration order.
type Priority int

// DefaultPriority is the priority used by Register and RegisterSticky.
const DefaultPriority Priority = 0

// FilterFunc is a predicate for filtering events.
// Return true to allow the event, false to filter it out.
type FilterFunc func(event any) bool

// Stats contains event bus statistics.
type Stats struct {
	// EventsPosted is the total number of events accepted by Post.
	EventsPosted uint64

	// EventsWithoutSubscribers is the number of posts that matched no subscription.
	EventsWithoutSubscribers uint64

	// Deliveries is the total number of subscriber invocations.
	Deliveries uint64

	// Failures is the number of invocations that returned an error.
	Failures uint64

	// Panics is the number of invocations that panicked.
	Panics uint64

	// Dropped is the number of deliveries rejected by a full or stopped queue.
	Dropped uint64

	// AvgDeliveryTimeNs is the average subscriber invocation time in nanoseconds.
	AvgDeliveryTimeNs int64

	// Subscriptions is the current number of registered subscriptions.
	Subscriptions int

	// StickyEvents is the current number of retained sticky events.
	StickyEvents int

	// MainQueueDepth is the number of MainThread deliveries waiting to run.
	// Always zero when the main loop is supplied by the host.
	MainQueueDepth int

	// BackgroundQueueDepth is the number of BackgroundThread deliveries waiting to run.
	BackgroundQueueDepth int

	// AsyncQueueDepth is the number of Async deliveries waiting to run.
	AsyncQueueDepth int
}
