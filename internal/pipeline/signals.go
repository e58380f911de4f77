package pipeline

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fanboxed/internal/download"
	"fanboxed/internal/logging"
)

// InterruptContext returns a context cancelled on SIGINT or SIGTERM, except
// that the first interrupt while guard is active is swallowed with a warning.
// stop releases the signal handler.
func InterruptContext(parent context.Context, guard *download.InterruptGuard, logger *slog.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-signals:
				if guard != nil && guard.Intercept() {
					logging.WarnWithContext(logger, "downloads in progress; interrupt again to abort", "interrupt_deferred",
						logging.String("signal", sig.String()),
						logging.String(logging.FieldImpact, "queued and in-flight downloads will be lost on a second interrupt"),
					)
					continue
				}
				cancel()
				return
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ctx, func() {
		signal.Stop(signals)
		close(done)
		cancel()
	}
}
