package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptContext returns a context canceled by the first SIGINT/SIGTERM.
// A second interrupt exits the process immediately. Canceling only stops
// local polling and the authorization window race; submitted jobs keep
// running on the backend regardless.
func interruptContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		for interrupts := 0; ; interrupts++ {
			select {
			case sig := <-sigCh:
				if interrupts > 0 {
					logger.Warn("second interrupt, exiting now",
						slog.String("signal", sig.String()),
					)
					os.Exit(1)
				}

				logger.Info("interrupt received, stopping job polling",
					slog.String("signal", sig.String()),
				)
				cancel()

			case <-parent.Done():
				return
			}
		}
	}()

	return ctx
}
