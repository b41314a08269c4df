package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "STICKYBUS_"

// LookupFunc reports the value of an environment variable. os.LookupEnv
// satisfies it.
type LookupFunc func(key string) (string, bool)

// envSetting maps one environment variable onto the configuration.
type envSetting struct {
	path  string
	apply func(cfg *Config, value string) error
}

// envMapping returns the environment variable mappings, keyed by the name
// without EnvPrefix.
func envMapping() map[string]envSetting {
	return map[string]envSetting{
		"LOG_LEVEL": {"logging.level", func(c *Config, v string) error {
			c.Logging.Level = v
			return nil
		}},
		"LOG_FORMAT": {"logging.format", func(c *Config, v string) error {
			c.Logging.Format = v
			return nil
		}},
		"LOG_OUTPUT": {"logging.output", func(c *Config, v string) error {
			c.Logging.Output = v
			return nil
		}},
		"METRICS_ENABLED": {"metrics.enabled", func(c *Config, v string) error {
			b, err := parseBool(v)
			c.Metrics.Enabled = b
			return err
		}},
		// Setting an address implies enabling the endpoint.
		"METRICS_ADDR": {"metrics.addr", func(c *Config, v string) error {
			c.Metrics.Addr = v
			c.Metrics.Enabled = v != ""
			return nil
		}},
		"ASYNC_WORKERS": {"bus.async_workers", func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			c.Bus.AsyncWorkers = n
			return err
		}},
		"RESOLVER": {"bus.resolver", func(c *Config, v string) error {
			c.Bus.Resolver = strings.ToLower(v)
			return nil
		}},
		"EVENT_INHERITANCE": {"bus.event_inheritance", func(c *Config, v string) error {
			b, err := parseBool(v)
			c.Bus.EventInheritance = Bool(b)
			return err
		}},
	}
}

// EnvVars returns the names of the recognized environment variables.
func EnvVars() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(envMapping())) {
		names = append(names, EnvPrefix+name)
	}
	return names
}

// ApplyEnv overrides cfg with the STICKYBUS_* variables reported by lookup.
// Empty values are treated as set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	m := envMapping()
	// Sorted so that METRICS_ENABLED is applied after METRICS_ADDR.
	for _, name := range slices.Sorted(maps.Keys(m)) {
		s := m[name]
		val, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := s.apply(cfg, strings.TrimSpace(val)); err != nil {
			return &ValidationError{
				Path:    s.path,
				Message: fmt.Sprintf("invalid %s%s: %v", EnvPrefix, name, err),
				Value:   val,
			}
		}
	}
	return nil
}

// parseBool accepts the usual spellings of true and false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", s)
	}
}
