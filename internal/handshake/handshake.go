// Package handshake connects an external mail account through a third-party
// authorization window. Completion is detected by two independent, racing
// signal channels: a message delivered by the backend once its OAuth
// callback fires, and a fixed-interval poll observing the window being
// closed. Whichever channel observes completion first tears down both
// channels and resolves the attempt exactly once.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a handshake attempt resolved.
type Outcome string

const (
	// OutcomeSuccess means the expected success message arrived.
	OutcomeSuccess Outcome = "success"
	// OutcomeClosedWithoutSuccess means the window closed before any
	// success message. This is not necessarily a failure: the account may
	// have connected without the message getting through, so callers
	// should re-query account state before reporting anything definite.
	OutcomeClosedWithoutSuccess Outcome = "closed_without_success"
)

// Result is the single resolution of a handshake attempt.
type Result struct {
	Outcome Outcome
	Payload map[string]any
}

// Message is an inbound event from the authorization flow. Only messages
// whose type matches the attempt's expected type and whose Success flag is
// true resolve the handshake; everything else is ignored, never treated as
// failure.
type Message struct {
	Type    string
	Success bool
	Payload map[string]any
}

// Window is an open authorization window. Closed must be cheap — it is
// polled on a fixed interval.
type Window interface {
	Closed() bool
}

// WindowSize is the fixed size the authorization window opens at.
type WindowSize struct {
	Width  int
	Height int
}

// Opener opens the authorization window. A blocked or failed open returns
// an error (wrapping ErrWindowBlocked where detectable).
type Opener interface {
	Open(url string, size WindowSize) (Window, error)
}

// Source delivers inbound messages. Subscribe returns a stream filtered to
// the given message type plus an unsubscribe func that must be safe to call
// more than once.
type Source interface {
	Subscribe(messageType string) (<-chan Message, func(), error)
}

// ErrWindowBlocked indicates the authorization window could not be opened,
// typically because the environment blocks popups or no suitable browser
// was found. No listeners are installed when this is returned.
var ErrWindowBlocked = errors.New("handshake: authorization window blocked")

// Default tuning. The close poll matches the original dashboard cadence.
const (
	defaultClosePollInterval = 500 * time.Millisecond
	defaultWindowWidth       = 600
	defaultWindowHeight      = 700
)

// Options tunes a Handshake. Zero values select the defaults.
type Options struct {
	ClosePollInterval time.Duration
	WindowSize        WindowSize
}

// Handshake runs connection attempts. One Handshake may run any number of
// sequential attempts; each attempt exclusively owns its window, message
// subscription, and poll timer for its lifetime.
type Handshake struct {
	opener      Opener
	source      Source
	messageType string
	opts        Options
	logger      *slog.Logger
}

// New creates a Handshake resolving on messages of the given type.
func New(opener Opener, source Source, messageType string, opts Options, logger *slog.Logger) *Handshake {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.ClosePollInterval <= 0 {
		opts.ClosePollInterval = defaultClosePollInterval
	}

	if opts.WindowSize.Width <= 0 {
		opts.WindowSize.Width = defaultWindowWidth
	}

	if opts.WindowSize.Height <= 0 {
		opts.WindowSize.Height = defaultWindowHeight
	}

	return &Handshake{
		opener:      opener,
		source:      source,
		messageType: messageType,
		opts:        opts,
		logger:      logger,
	}
}

// attempt owns the per-attempt resources: the window handle, the message
// subscription, and the close-poll ticker. resolved flips true exactly once;
// teardown of both channels happens before the winning channel's result is
// returned, and is idempotent against the losing channel firing late.
type attempt struct {
	win         Window
	ticker      *time.Ticker
	unsubscribe func()

	resolved     atomic.Bool
	teardownOnce sync.Once
}

// resolve claims the attempt for one channel. The first caller wins, tears
// down both channels, and returns true; every later call is a no-op.
func (a *attempt) resolve() bool {
	if !a.resolved.CompareAndSwap(false, true) {
		return false
	}

	a.teardown()

	return true
}

// teardown stops the close poll and removes the message listener. Safe to
// call more than once.
func (a *attempt) teardown() {
	a.teardownOnce.Do(func() {
		a.ticker.Stop()
		a.unsubscribe()
	})
}

// Begin opens the authorization window and blocks until one of the two
// channels resolves the attempt. There is no caller-visible timeout: the
// handshake waits indefinitely for either the window to close or a success
// message to arrive. ctx is only the process-wide abort (e.g. SIGINT); it
// is not a per-attempt cancel.
//
// If the window cannot be opened, Begin fails immediately with
// OutcomeClosedWithoutSuccess and an error wrapping ErrWindowBlocked,
// without installing any listener or timer.
func (h *Handshake) Begin(ctx context.Context, authorizationURL string) (Result, error) {
	attemptID := uuid.NewString()
	logger := h.logger.With(slog.String("attempt_id", attemptID))

	logger.Info("opening authorization window",
		slog.Int("width", h.opts.WindowSize.Width),
		slog.Int("height", h.opts.WindowSize.Height),
	)

	win, err := h.opener.Open(authorizationURL, h.opts.WindowSize)
	if err != nil {
		return Result{Outcome: OutcomeClosedWithoutSuccess},
			fmt.Errorf("handshake: opening authorization window: %w", err)
	}

	if win == nil {
		return Result{Outcome: OutcomeClosedWithoutSuccess}, ErrWindowBlocked
	}

	msgs, unsubscribe, err := h.source.Subscribe(h.messageType)
	if err != nil {
		return Result{Outcome: OutcomeClosedWithoutSuccess},
			fmt.Errorf("handshake: subscribing to %s messages: %w", h.messageType, err)
	}

	a := &attempt{
		win:         win,
		ticker:      time.NewTicker(h.opts.ClosePollInterval),
		unsubscribe: unsubscribe,
	}
	// Teardown must also run on the ctx abort path below.
	defer a.teardown()

	return h.wait(ctx, a, msgs, logger)
}

// wait races the message channel against the close poll. Select ordering
// between ready channels is non-deterministic — "first observer to run
// wins", there is no priority. A message already queued when the window
// reports closed may still win the race.
func (h *Handshake) wait(ctx context.Context, a *attempt, msgs <-chan Message, logger *slog.Logger) (Result, error) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				// Source shut down underneath us; nothing more can arrive
				// on this channel. The close poll keeps running.
				msgs = nil
				continue
			}

			if !msg.Success {
				logger.Debug("ignoring non-success message",
					slog.String("type", msg.Type),
				)

				continue
			}

			if !a.resolve() {
				continue
			}

			logger.Info("authorization succeeded")

			return Result{Outcome: OutcomeSuccess, Payload: msg.Payload}, nil

		case <-a.ticker.C:
			if !a.win.Closed() {
				continue
			}

			if !a.resolve() {
				continue
			}

			logger.Info("authorization window closed without success message")

			return Result{Outcome: OutcomeClosedWithoutSuccess}, nil

		case <-ctx.Done():
			a.resolve()

			return Result{Outcome: OutcomeClosedWithoutSuccess},
				fmt.Errorf("handshake: aborted: %w", ctx.Err())
		}
	}
}
