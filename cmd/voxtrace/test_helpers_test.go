package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxtrace/internal/config"
	"voxtrace/internal/daemon"
	"voxtrace/internal/ipc"
	"voxtrace/internal/logging"
	"voxtrace/internal/testsupport"
	"voxtrace/internal/tracker"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	remote     *testsupport.FakeRemote
	socketPath string
	configPath string
	shutdowns  chan struct{}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(homeDir, ".config", "voxtrace", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	fakeRemote := testsupport.NewFakeRemote(testsupport.ProcessingReport(10))
	tr := tracker.New(tracker.Options{
		Config: cfg,
		Remote: fakeRemote,
		Clock:  testsupport.NewFakeClock(time.Unix(0, 0)),
	})
	d, err := daemon.New(cfg, tr, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	shutdowns := make(chan struct{}, 1)
	srv, err := ipc.NewServer(context.Background(), ipc.ServerOptions{
		SocketPath: cfg.SocketPath(),
		Daemon:     d,
		OnShutdown: func() { shutdowns <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		remote:     fakeRemote,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		shutdowns:  shutdowns,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[service]\nbase_url = %q\nuser_id = %q\n\n[paths]\nstate_dir = %q\nlog_dir = %q\n",
		cfg.Service.BaseURL,
		cfg.Service.UserID,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
