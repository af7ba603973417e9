package testsupport

import (
	"path/filepath"
	"testing"

	"voxtrace/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Service.BaseURL = "http://127.0.0.1:0"
	cfg.Service.UserID = "test-user"
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithBaseURL points the test config at a live test server.
func WithBaseURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Service.BaseURL = url
	}
}

// WithPolling overrides the backoff schedule on the test config.
func WithPolling(initialMS, maxMS int, multiplier float64, maxRetries int) ConfigOption {
	return func(c *config.Config) {
		c.Polling.InitialDelayMS = initialMS
		c.Polling.MaxDelayMS = maxMS
		c.Polling.Multiplier = multiplier
		c.Polling.MaxRetries = maxRetries
	}
}
