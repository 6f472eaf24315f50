// Package obslog builds the structured logging sink used by the transfer
// engine and CLI. It is initialised once at process start and torn down at
// process exit, per §5's process-wide state note.
package obslog

import (
	"io"
	"log/slog"
)

// New builds a text-handler slog.Logger writing to out at the given level.
func New(level slog.Level, out io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// ParseLevel maps the three verbosity names spec.md exposes (info, warn,
// error) to a slog.Level.
func ParseLevel(name string) slog.Level {
	switch name {
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
