package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "EASYEMAIL_CONFIG"
	EnvServer  = "EASYEMAIL_SERVER"
	EnvBrowser = "EASYEMAIL_BROWSER"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // EASYEMAIL_CONFIG: override config file path
	ServerURL  string // EASYEMAIL_SERVER: override backend base URL
	Browser    string // EASYEMAIL_BROWSER: override authorization browser
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerURL:  os.Getenv(EnvServer),
		Browser:    os.Getenv(EnvBrowser),
	}
}
