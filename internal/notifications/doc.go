// Package notifications delivers terminal-job events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled, so the tracker can always call it unconditionally.
package notifications
