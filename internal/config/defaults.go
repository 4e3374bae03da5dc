package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work against a locally running backend without any
// config file.
const (
	defaultBaseURL           = "http://localhost:8000/api"
	defaultRequestTimeout    = "30s"
	defaultPollInterval      = "2s"
	defaultSuccessLinger     = "2s"
	defaultFailureLinger     = "6s"
	defaultClosePollInterval = "500ms"
	defaultWindowWidth       = 600
	defaultWindowHeight      = 700
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Tracker: TrackerConfig{
			PollInterval:  defaultPollInterval,
			SuccessLinger: defaultSuccessLinger,
			FailureLinger: defaultFailureLinger,
		},
		Handshake: HandshakeConfig{
			ClosePollInterval: defaultClosePollInterval,
			WindowWidth:       defaultWindowWidth,
			WindowHeight:      defaultWindowHeight,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
