// Package daemon wraps the tracker in a long-running process shell: a
// filesystem lock for single-instance execution and a status snapshot for
// the CLI.
package daemon
