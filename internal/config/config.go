// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for the easyEmail CLI. It supports a
// layered override chain: defaults -> config file -> environment -> CLI
// flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// Interval and timeout values are duration strings ("2s", "500ms"); they
// are parsed during validation into the Resolved form the rest of the
// program consumes.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Tracker   TrackerConfig   `toml:"tracker"`
	Handshake HandshakeConfig `toml:"handshake"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig locates the easyEmail backend.
type ServerConfig struct {
	// BaseURL is the REST API root, e.g. "http://localhost:8000/api".
	BaseURL string `toml:"base_url"`
	// EventsURL is the WebSocket event stream. Derived from BaseURL when
	// empty.
	EventsURL string `toml:"events_url"`
	// RequestTimeout bounds individual HTTP requests.
	RequestTimeout string `toml:"request_timeout"`
}

// TrackerConfig controls job polling cadence and how long terminal results
// stay on screen.
type TrackerConfig struct {
	PollInterval  string `toml:"poll_interval"`
	SuccessLinger string `toml:"success_linger"`
	FailureLinger string `toml:"failure_linger"`
}

// HandshakeConfig controls the account authorization window.
type HandshakeConfig struct {
	ClosePollInterval string `toml:"close_poll_interval"`
	WindowWidth       int    `toml:"window_width"`
	WindowHeight      int    `toml:"window_height"`
	// Browser overrides app-mode browser auto-detection.
	Browser string `toml:"browser"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`  // debug|info|warn|error
	LogFormat string `toml:"log_format"` // auto|text|json
}
