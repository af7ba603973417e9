package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxtrace/internal/config"
)

func TestLoadDefaultsUseEnvOverridesAndExpandPaths(t *testing.T) {
	t.Setenv("VOXTRACE_BASE_URL", "http://api.example.test")
	t.Setenv("VOXTRACE_USER_ID", "user-42")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "voxtrace")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Service.BaseURL != "http://api.example.test" {
		t.Fatalf("expected base url from env, got %q", cfg.Service.BaseURL)
	}
	if cfg.Service.UserID != "user-42" {
		t.Fatalf("expected user id from env, got %q", cfg.Service.UserID)
	}
	if cfg.InitialDelay() != 2*time.Second {
		t.Fatalf("unexpected initial delay: %s", cfg.InitialDelay())
	}
	if cfg.MaxDelay() != 30*time.Second {
		t.Fatalf("unexpected max delay: %s", cfg.MaxDelay())
	}
	if cfg.Polling.Multiplier != 1.5 {
		t.Fatalf("unexpected multiplier: %v", cfg.Polling.Multiplier)
	}
	if cfg.Polling.MaxRetries != 30 {
		t.Fatalf("unexpected max retries: %d", cfg.Polling.MaxRetries)
	}
	if cfg.SocketPath() != filepath.Join(wantState, "voxtrace.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
}

func TestLoadParsesFileAndNormalizesBaseURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := strings.Join([]string{
		"[service]",
		`base_url = "https://audio.example.test/"`,
		`user_id = "alice"`,
		"",
		"[polling]",
		"initial_delay_ms = 500",
		"max_delay_ms = 5000",
		"multiplier = 2.0",
		"max_retries = 5",
		"",
		"[paths]",
		`state_dir = "` + filepath.Join(dir, "state") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Service.BaseURL != "https://audio.example.test" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Service.BaseURL)
	}
	if cfg.InitialDelay() != 500*time.Millisecond || cfg.MaxDelay() != 5*time.Second {
		t.Fatalf("unexpected polling delays: %s / %s", cfg.InitialDelay(), cfg.MaxDelay())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing base url", func(c *config.Config) { c.Service.BaseURL = "" }, "service.base_url"},
		{"relative base url", func(c *config.Config) { c.Service.BaseURL = "localhost:8000" }, "service.base_url"},
		{"missing user id", func(c *config.Config) { c.Service.UserID = "" }, "service.user_id"},
		{"zero initial delay", func(c *config.Config) { c.Polling.InitialDelayMS = 0 }, "polling.initial_delay_ms"},
		{"max below initial", func(c *config.Config) { c.Polling.MaxDelayMS = 1 }, "polling.max_delay_ms"},
		{"multiplier below one", func(c *config.Config) { c.Polling.Multiplier = 0.5 }, "polling.multiplier"},
		{"zero retries", func(c *config.Config) { c.Polling.MaxRetries = 0 }, "polling.max_retries"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "yaml" }, "logging.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Service.BaseURL = "http://localhost:8000"
			cfg.Service.UserID = "u"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleWritesParsableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[service]") {
		t.Fatal("sample config missing [service] section")
	}
}
