package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const loggerKey contextKey = iota

// WithLogger stores a logger on the context so request handlers and stage
// code share one run-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the context's logger, or the process default when
// none is stored.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID returns a context carrying a logger annotated with the run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With("runId", runID))
}
