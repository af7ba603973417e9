package main

import (
	"testing"
	"time"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"track", "job-1"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("track: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon running: yes")
	requireContains(t, out, "uploading")
	requireContains(t, out, "job-1")
}

func TestStopCommandRequestsShutdown(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopping")

	select {
	case <-env.shutdowns:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown request never reached the daemon")
	}
}
