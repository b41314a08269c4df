// Package config loads the stickybus configuration.
//
// Configuration is resolved in layers, later layers overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← STICKYBUS_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← .toml, .yaml or .yml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Default()
//	└─────────────────────────────┘
//
// # Configuration Files
//
//	[logging]
//	level = "info"
//	format = "console"
//
//	[metrics]
//	enabled = true
//	addr = ":9090"
//
//	[bus]
//	async_workers = 8
//	send_subscriber_exception_event = true
//
//	[buses.ui]
//	event_inheritance = true
//
// The [bus] table configures every bus; a [buses.<tag>] table overrides it
// for the bus of that tag. Unknown keys are rejected.
//
// # Live Reload
//
// Watcher reloads the file when it changes and hands the new Config (or the
// load error) to a callback. Only settings that can change at runtime, such
// as the log level, should be applied from it.
//
// # Error Handling
//
//   - ErrFileNotFound: the config file does not exist
//   - ErrUnsupportedFormat: the file extension is not a known format
//   - *ParseError: the file is not valid TOML or YAML for Config
//   - *ValidationError: a setting has an invalid value
package config
