package handshake

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync/atomic"
)

// BrowserOpener opens the authorization URL in a dedicated browser app
// window (chromium --app mode). App mode matters: the spawned process
// lives as long as the window, so Window.Closed can report closure by
// watching process exit. A plain tab in an existing browser session would
// detach immediately and falsely report closed.
type BrowserOpener struct {
	// Command overrides browser auto-detection, e.g. "chromium".
	Command string
	Logger  *slog.Logger
}

// browserCandidates lists app-mode capable browsers in preference order.
var browserCandidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"brave-browser",
	"microsoft-edge",
}

// Open launches the browser window. Returns an error wrapping
// ErrWindowBlocked when no suitable browser exists or the launch fails.
func (o *BrowserOpener) Open(url string, size WindowSize) (Window, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name, err := o.browserPath()
	if err != nil {
		return nil, err
	}

	args := []string{
		fmt.Sprintf("--app=%s", url),
		fmt.Sprintf("--window-size=%d,%d", size.Width, size.Height),
	}

	cmd := exec.Command(name, args...)
	if startErr := cmd.Start(); startErr != nil {
		return nil, fmt.Errorf("%w: launching %s: %v", ErrWindowBlocked, name, startErr)
	}

	logger.Debug("authorization window launched",
		slog.String("browser", name),
		slog.Int("pid", cmd.Process.Pid),
	)

	w := &processWindow{}

	go func() {
		// Wait reaps the child; exit of the app-mode process means the
		// window was closed.
		_ = cmd.Wait()
		w.closed.Store(true)
	}()

	return w, nil
}

// browserPath resolves the browser binary to launch.
func (o *BrowserOpener) browserPath() (string, error) {
	if o.Command != "" {
		path, err := exec.LookPath(o.Command)
		if err != nil {
			return "", fmt.Errorf("%w: browser %q not found: %v", ErrWindowBlocked, o.Command, err)
		}

		return path, nil
	}

	for _, candidate := range browserCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: no app-mode capable browser found on %s (set handshake.browser in config)",
		ErrWindowBlocked, runtime.GOOS)
}

// processWindow reports closure when the spawned browser process exits.
type processWindow struct {
	closed atomic.Bool
}

func (w *processWindow) Closed() bool {
	return w.closed.Load()
}
