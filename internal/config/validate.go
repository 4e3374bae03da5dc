package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Resolved is the validated, parsed form of Config that the rest of the
// program consumes. Durations are real time.Durations and the events URL
// is always populated.
type Resolved struct {
	BaseURL        string
	EventsURL      string
	RequestTimeout time.Duration

	PollInterval  time.Duration
	SuccessLinger time.Duration
	FailureLinger time.Duration

	ClosePollInterval time.Duration
	WindowWidth       int
	WindowHeight      int
	Browser           string

	LogLevel  string
	LogFormat string
}

// Valid log levels and formats.
var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate checks a Config and converts it into its Resolved form.
func Validate(cfg *Config) (*Resolved, error) {
	var errs []error

	r := &Resolved{
		BaseURL:      strings.TrimRight(cfg.Server.BaseURL, "/"),
		WindowWidth:  cfg.Handshake.WindowWidth,
		WindowHeight: cfg.Handshake.WindowHeight,
		Browser:      cfg.Handshake.Browser,
		LogLevel:     cfg.Logging.LogLevel,
		LogFormat:    cfg.Logging.LogFormat,
	}

	if r.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url must not be empty"))
	}

	eventsURL, err := resolveEventsURL(r.BaseURL, cfg.Server.EventsURL)
	if err != nil {
		errs = append(errs, err)
	}

	r.EventsURL = eventsURL

	durations := []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"server.request_timeout", cfg.Server.RequestTimeout, &r.RequestTimeout},
		{"tracker.poll_interval", cfg.Tracker.PollInterval, &r.PollInterval},
		{"tracker.success_linger", cfg.Tracker.SuccessLinger, &r.SuccessLinger},
		{"tracker.failure_linger", cfg.Tracker.FailureLinger, &r.FailureLinger},
		{"handshake.close_poll_interval", cfg.Handshake.ClosePollInterval, &r.ClosePollInterval},
	}

	for _, d := range durations {
		parsed, parseErr := time.ParseDuration(d.value)
		if parseErr != nil || parsed <= 0 {
			errs = append(errs, fmt.Errorf("%s: %q is not a positive duration", d.name, d.value))
			continue
		}

		*d.out = parsed
	}

	if r.WindowWidth <= 0 || r.WindowHeight <= 0 {
		errs = append(errs, fmt.Errorf("handshake window size %dx%d is not positive",
			r.WindowWidth, r.WindowHeight))
	}

	if !validLogLevels[r.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: unknown level %q", r.LogLevel))
	}

	if !validLogFormats[r.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format: unknown format %q", r.LogFormat))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return r, nil
}

// resolveEventsURL derives the WebSocket event stream URL from the API base
// URL when no explicit events_url is configured:
// http://host:8000/api -> ws://host:8000/api/events/ws.
func resolveEventsURL(baseURL, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("server.base_url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server.base_url: unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/events/ws"

	return u.String(), nil
}
