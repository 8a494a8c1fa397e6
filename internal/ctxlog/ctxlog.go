// Package ctxlog carries a slog.Logger and a progress sink through
// context.Context so plugins can report without depending on the engine.
package ctxlog

import (
	"context"
	"fmt"
	"log/slog"
)

type loggerKey struct{}

type progressKey struct{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from ctx, falling back to slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ProgressFunc receives one human-readable progress line.
type ProgressFunc func(line string)

// WithProgress returns a new context whose Progress calls reach fn.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// Progress formats a line and hands it to the context's progress sink.
// It is a no-op when none is set.
func Progress(ctx context.Context, format string, args ...any) {
	fn, ok := ctx.Value(progressKey{}).(ProgressFunc)
	if !ok || fn == nil {
		return
	}
	fn(fmt.Sprintf(format, args...))
}
