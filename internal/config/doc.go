// Package config loads, normalizes, and validates the TOML configuration
// that drives the export daemon: filesystem layout, external editor paths,
// pipeline timeouts, and ambient settings like logging and notifications.
package config
