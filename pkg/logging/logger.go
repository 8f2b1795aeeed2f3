package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level writing JSON to stdout
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a logger writing to w, so tests can capture output
func NewWithWriter(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	handler := slog.NewJSONHandler(w, opts)
	return &Logger{Logger: slog.New(handler)}
}

// With returns a logger carrying the given attributes on every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
