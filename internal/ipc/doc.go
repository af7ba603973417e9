// Package ipc provides the unix-socket control channel between the
// CLI and the daemon. The daemon exposes a JSON-RPC service named
// Voxtrace; the CLI connects with Dial and issues one call per
// command invocation.
package ipc
