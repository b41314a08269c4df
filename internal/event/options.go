package event

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Bus.
type Option func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// name labels log lines and metrics.
	name string

	logger   *zap.SugaredLogger
	resolver Resolver

	// mainLoop runs MainThread deliveries. Nil means a bus-owned serial loop.
	mainLoop MainLoop

	// asyncWorkerCount is the number of async worker goroutines.
	asyncWorkerCount int

	// asyncQueueSize bounds the async queue. Zero means unbounded.
	asyncQueueSize int

	eventInheritance             bool
	logSubscriberExceptions      bool
	sendSubscriberExceptionEvent bool
	logNoSubscriberMessages      bool
	sendNoSubscriberEvent        bool

	// registerer receives the bus metrics. Nil leaves them unregistered.
	registerer prometheus.Registerer
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		name:                         "default",
		logger:                       zap.NewNop().Sugar(),
		asyncWorkerCount:             max(runtime.GOMAXPROCS(0), 4),
		logSubscriberExceptions:      true,
		sendSubscriberExceptionEvent: true,
	}
}

// WithName sets the bus name used in logs and as the "bus" metric label.
func WithName(name string) Option {
	return func(c *busConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the logger. The bus logs under the "event" name.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithResolver sets the subscriber method resolver.
// The default is an AnnotationResolver with the DefaultBoundary.
func WithResolver(r Resolver) Option {
	return func(c *busConfig) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithMainLoop runs MainThread deliveries on a host-supplied loop instead of
// a bus-owned one. The bus neither starts nor stops a supplied loop.
func WithMainLoop(l MainLoop) Option {
	return func(c *busConfig) {
		c.mainLoop = l
	}
}

// WithAsyncWorkers sets the number of goroutines serving Async deliveries.
func WithAsyncWorkers(count int) Option {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithAsyncQueueSize bounds the Async delivery queue. Deliveries beyond the
// bound are dropped and reported. Zero keeps the queue unbounded.
func WithAsyncQueueSize(size int) Option {
	return func(c *busConfig) {
		if size >= 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithEventInheritance also delivers events to subscribers of interface types
// the event implements, and replays sticky events of implementing types to
// sticky subscribers of an interface type. Off by default.
func WithEventInheritance(enabled bool) Option {
	return func(c *busConfig) {
		c.eventInheritance = enabled
	}
}

// WithLogSubscriberExceptions controls error logging of failed subscribers.
// On by default.
func WithLogSubscriberExceptions(enabled bool) Option {
	return func(c *busConfig) {
		c.logSubscriberExceptions = enabled
	}
}

// WithSubscriberExceptionEvent controls posting a SubscriberExceptionEvent
// for each failed subscriber. On by default.
func WithSubscriberExceptionEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.sendSubscriberExceptionEvent = enabled
	}
}

// WithLogNoSubscriberMessages controls debug logging of events nobody
// subscribed to. Off by default.
func WithLogNoSubscriberMessages(enabled bool) Option {
	return func(c *busConfig) {
		c.logNoSubscriberMessages = enabled
	}
}

// WithNoSubscriberEvent controls posting a NoSubscriberEvent for events
// nobody subscribed to. Off by default.
func WithNoSubscriberEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.sendNoSubscriberEvent = enabled
	}
}

// WithMetrics registers the bus metrics on reg, labeled with the bus name.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *busConfig) {
		c.registerer = reg
	}
}
