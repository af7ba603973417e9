package config

const (
	defaultStateDir              = "~/.local/share/voxtrace"
	defaultLogDir                = "~/.local/share/voxtrace/logs"
	defaultRequestTimeout        = 30
	defaultInitialDelayMS        = 2000
	defaultMaxDelayMS            = 30000
	defaultMultiplier            = 1.5
	defaultMaxRetries            = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultNotifyRequestTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			RequestTimeout: defaultRequestTimeout,
		},
		Polling: Polling{
			InitialDelayMS: defaultInitialDelayMS,
			MaxDelayMS:     defaultMaxDelayMS,
			Multiplier:     defaultMultiplier,
			MaxRetries:     defaultMaxRetries,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
			Cancelled:      false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
