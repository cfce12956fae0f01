package logging

import (
	"context"
	"log/slog"
)

// contextKey is the type for context keys used by this package.
type contextKey struct{}

var loggerKey = contextKey{}

// FromContext retrieves a logger from context, or returns slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithLogger returns a context with the given logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}
