package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that will live until Ctrl+C (or SIGTERM) is received,
// a second signal exits immediately.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Warn("interrupt received, finishing current work and flushing (press again to force quit)")
		cancel()
		<-sigs
		os.Exit(130)
	}()

	return ctx
}

// Fatal logs the error and exits with status 1, it should only be used for setup
// failures at the CLI boundary.
func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
