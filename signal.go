package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM.
// In-flight API calls abort and deferred cleanup runs. Further signals are
// logged but never force an exit, so the scratch directory is always removed.
// The returned stop function releases the signal handler.
func shutdownContext(parent context.Context, logger *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stopped := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn("received signal, stopping after the current call",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		case <-stopped:
			return
		}

		for {
			select {
			case sig := <-sigCh:
				logger.Warn("already stopping, waiting for cleanup",
					slog.String("signal", sig.String()),
				)
			case <-stopped:
				return
			}
		}
	}()

	var once sync.Once

	return ctx, func() {
		once.Do(func() {
			close(stopped)
			cancel()
		})
	}
}
