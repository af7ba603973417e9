package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateService() error {
	if c.Service.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/voxtrace/config.toml"
		}
		return fmt.Errorf("service.base_url is required. Set VOXTRACE_BASE_URL env var or edit %s (create with 'voxtrace config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Service.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("service.base_url %q must be an absolute http(s) URL", c.Service.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("service.base_url scheme %q is not supported", parsed.Scheme)
	}
	if c.Service.UserID == "" {
		return errors.New("service.user_id must be set")
	}
	if c.Service.RequestTimeout <= 0 {
		return errors.New("service.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validatePolling() error {
	if c.Polling.InitialDelayMS <= 0 {
		return errors.New("polling.initial_delay_ms must be positive")
	}
	if c.Polling.MaxDelayMS < c.Polling.InitialDelayMS {
		return errors.New("polling.max_delay_ms must be at least polling.initial_delay_ms")
	}
	if c.Polling.Multiplier < 1 {
		return errors.New("polling.multiplier must be at least 1")
	}
	if c.Polling.MaxRetries <= 0 {
		return errors.New("polling.max_retries must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	return nil
}
