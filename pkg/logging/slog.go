package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func New() *slog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel builds the JSON logger used by every service binary. Unknown
// levels fall back to info.
func NewWithLevel(level string) *slog.Logger {
	return NewTo(os.Stdout, level)
}

// NewTo is NewWithLevel writing to w; the CLI logs to stderr so stdout stays
// machine readable.
func NewTo(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
