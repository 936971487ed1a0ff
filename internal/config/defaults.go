package config

const (
	defaultBackendBaseURL      = "http://127.0.0.1:8000"
	defaultEnvironment         = EnvDevelopment
	defaultRequestTimeout      = 8
	defaultProgressIdleTimeout = 45
	defaultReconnectBaseDelay  = 1
	defaultReconnectMaxDelay   = 10
	defaultAutoAcceptThreshold = 0.8
	defaultDataDir             = "~/.local/share/vigil"
	defaultLogDir              = "~/.local/share/vigil/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			Environment:    defaultEnvironment,
			RequestTimeout: defaultRequestTimeout,
		},
		Ingest: Ingest{
			ProgressIdleTimeout: defaultProgressIdleTimeout,
			ReconnectBaseDelay:  defaultReconnectBaseDelay,
			ReconnectMaxDelay:   defaultReconnectMaxDelay,
		},
		Review: Review{
			AutoAcceptThreshold: defaultAutoAcceptThreshold,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
