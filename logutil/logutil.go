// Package logutil provides a log level below slog.LevelDebug for the
// high-volume per-tensor and per-batch tracing calls scattered through the
// backend, scheduler, and runner packages, plus the handler/logger pair
// that renders it alongside the standard levels.
package logutil

import (
	"context"
	"io"
	"log/slog"
)

// LevelTrace sits one step below slog.LevelDebug, matching the
// OLLAMA_DEBUG=2 convention: 0/unset is Info, 1 is Debug, 2 is Trace.
const LevelTrace = slog.Level(-8)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
}

// NewLogger builds the process-wide structured logger, rendering
// LevelTrace with its own name instead of falling back to slog's
// "DEBUG-4" default formatting.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if level, ok := a.Value.Any().(slog.Level); ok {
					if name, ok := levelNames[level]; ok {
						a.Value = slog.StringValue(name)
					}
				}
			}
			return a
		},
	}))
}

// Trace logs msg at LevelTrace against the default logger, the TRACE-level
// counterpart to slog.Debug/slog.Info.
func Trace(msg string, args ...any) {
	slog.Default().Log(context.Background(), LevelTrace, msg, args...)
}
