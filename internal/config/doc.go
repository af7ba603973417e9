// Package config loads, normalizes, and validates Voxtrace configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VOXTRACE_BASE_URL. The Config type centralizes every knob the daemon and
// CLI need, from the backend endpoint to the polling backoff schedule.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
