package main

import (
	"context"
	"io"
	"log/slog"
)

// shutdowner is anything with a graceful, context-bounded stop.
type shutdowner interface {
	Shutdown(context.Context) error
}

// newCleanup builds the shutdown sequence run after the HTTP server
// stopped: list managers flush their queued writes, the authenticator
// drains activity updates, then the sink and store are closed.
func newCleanup(hub shutdowner, authenticator shutdowner, sink io.Closer, store io.Closer) func(context.Context) {
	return func(ctx context.Context) {
		if hub != nil {
			if err := hub.Shutdown(ctx); err != nil {
				slog.Error("failed to shut down list managers", slog.String("error", err.Error()))
			}
		}

		if authenticator != nil {
			if err := authenticator.Shutdown(ctx); err != nil {
				slog.Error("failed to shut down authenticator", slog.String("error", err.Error()))
			}
		}

		if sink != nil {
			if err := sink.Close(); err != nil {
				slog.Error("failed to close snapshot sink", slog.String("error", err.Error()))
			}
		}

		if store != nil {
			if err := store.Close(); err != nil {
				slog.Error("failed to close store", slog.String("error", err.Error()))
			}
		}
	}
}
