// Package config loads, normalizes, and validates the TOML configuration
// consumed by the sprocket daemon and CLI.
package config
