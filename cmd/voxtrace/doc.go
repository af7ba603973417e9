// Package main hosts the voxtrace CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon: submitting recordings, tracking and listing
// jobs, cancelling and retrying analyses, browsing archived history, and
// configuration scaffolding. It centralizes configuration resolution and
// socket discovery so subcommands can focus on user experience.
package main
