package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dshills/stickybus/internal/logging"
)

// Resolver names accepted by BusConfig.Resolver.
const (
	ResolverAnnotation = "annotation"
	ResolverNaming     = "naming"
)

// Config is the complete stickybus configuration.
type Config struct {
	Logging logging.Config `toml:"logging" yaml:"logging"`
	Metrics MetricsConfig  `toml:"metrics" yaml:"metrics"`

	// Bus applies to every bus.
	Bus BusConfig `toml:"bus" yaml:"bus"`

	// Buses overrides Bus per tag.
	Buses map[string]BusConfig `toml:"buses" yaml:"buses"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
	Path    string `toml:"path" yaml:"path"`
}

// BusConfig configures one bus. Zero and nil fields inherit: from the [bus]
// table for a tagged bus, and from the bus defaults for the [bus] table.
type BusConfig struct {
	// Resolver is "annotation" (default) or "naming".
	Resolver string `toml:"resolver" yaml:"resolver"`

	AsyncWorkers   int `toml:"async_workers" yaml:"async_workers"`
	AsyncQueueSize int `toml:"async_queue_size" yaml:"async_queue_size"`

	EventInheritance             *bool `toml:"event_inheritance" yaml:"event_inheritance"`
	LogSubscriberExceptions      *bool `toml:"log_subscriber_exceptions" yaml:"log_subscriber_exceptions"`
	SendSubscriberExceptionEvent *bool `toml:"send_subscriber_exception_event" yaml:"send_subscriber_exception_event"`
	LogNoSubscriberMessages      *bool `toml:"log_no_subscriber_messages" yaml:"log_no_subscriber_messages"`
	SendNoSubscriberEvent        *bool `toml:"send_no_subscriber_event" yaml:"send_no_subscriber_event"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
		Bus: BusConfig{
			Resolver: ResolverAnnotation,
		},
		Buses: make(map[string]BusConfig),
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Bus = c.Bus.clone()
	out.Buses = make(map[string]BusConfig, len(c.Buses))
	for tag, b := range c.Buses {
		out.Buses[tag] = b.clone()
	}
	return &out
}

// BusFor returns the effective configuration of the bus with the given tag.
// The empty tag is the default bus and uses the [bus] table unchanged.
func (c *Config) BusFor(tag string) BusConfig {
	base := c.Bus.clone()
	if tag == "" {
		return base
	}
	override, ok := c.Buses[tag]
	if !ok {
		return base
	}
	return base.merge(override)
}

// Tags returns the tags that have a [buses.<tag>] table, sorted.
func (c *Config) Tags() []string {
	return slices.Sorted(maps.Keys(c.Buses))
}

// merge returns b with the non-zero fields of o applied.
func (b BusConfig) merge(o BusConfig) BusConfig {
	if o.Resolver != "" {
		b.Resolver = o.Resolver
	}
	if o.AsyncWorkers != 0 {
		b.AsyncWorkers = o.AsyncWorkers
	}
	if o.AsyncQueueSize != 0 {
		b.AsyncQueueSize = o.AsyncQueueSize
	}
	b.EventInheritance = pick(o.EventInheritance, b.EventInheritance)
	b.LogSubscriberExceptions = pick(o.LogSubscriberExceptions, b.LogSubscriberExceptions)
	b.SendSubscriberExceptionEvent = pick(o.SendSubscriberExceptionEvent, b.SendSubscriberExceptionEvent)
	b.LogNoSubscriberMessages = pick(o.LogNoSubscriberMessages, b.LogNoSubscriberMessages)
	b.SendNoSubscriberEvent = pick(o.SendNoSubscriberEvent, b.SendNoSubscriberEvent)
	return b
}

func (b BusConfig) clone() BusConfig {
	b.EventInheritance = cloneBool(b.EventInheritance)
	b.LogSubscriberExceptions = cloneBool(b.LogSubscriberExceptions)
	b.SendSubscriberExceptionEvent = cloneBool(b.SendSubscriberExceptionEvent)
	b.LogNoSubscriberMessages = cloneBool(b.LogNoSubscriberMessages)
	b.SendNoSubscriberEvent = cloneBool(b.SendNoSubscriberEvent)
	return b
}

func pick(override, base *bool) *bool {
	if override != nil {
		return cloneBool(override)
	}
	return base
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Bool returns a pointer to v, for building BusConfig values.
func Bool(v bool) *bool {
	return &v
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &ValidationError{Path: "logging.level", Message: "unknown level", Value: c.Logging.Level})
	}
	switch c.Logging.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, &ValidationError{Path: "logging.format", Message: "must be console or json", Value: c.Logging.Format})
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			errs = append(errs, &ValidationError{Path: "metrics.addr", Message: "required when metrics are enabled", Value: c.Metrics.Addr})
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, &ValidationError{Path: "metrics.path", Message: "must start with /", Value: c.Metrics.Path})
		}
	}

	errs = append(errs, c.Bus.validate("bus")...)
	for tag, b := range c.Buses {
		if strings.TrimSpace(tag) == "" {
			errs = append(errs, &ValidationError{Path: "buses", Message: "tag must not be empty", Value: tag})
			continue
		}
		errs = append(errs, b.validate(fmt.Sprintf("buses.%s", tag))...)
	}

	return errors.Join(errs...)
}

func (b BusConfig) validate(path string) []error {
	var errs []error
	switch b.Resolver {
	case "", ResolverAnnotation, ResolverNaming:
	default:
		errs = append(errs, &ValidationError{Path: path + ".resolver", Message: "must be annotation or naming", Value: b.Resolver})
	}
	if b.AsyncWorkers < 0 {
		errs = append(errs, &ValidationError{Path: path + ".async_workers", Message: "must not be negative", Value: b.AsyncWorkers})
	}
	if b.AsyncQueueSize < 0 {
		errs = append(errs, &ValidationError{Path: path + ".async_queue_size", Message: "must not be negative", Value: b.AsyncQueueSize})
	}
	return errs
}
