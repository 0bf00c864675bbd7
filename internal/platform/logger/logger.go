// Package logger provides structured logging functionality for the
// application, built on log/slog with a JSON handler.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig holds the settings needed to configure the logger.
type LoggerConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string
}

// contextKey is an unexported type for context keys defined by this package.
type contextKey int

// loggerKey is the context key under which a request- or task-scoped
// logger is stored.
const loggerKey contextKey = iota

// Setup initializes the application's logging system from the provided
// configuration. It creates a structured JSON logger writing to stdout
// with the configured level, sets it as the process default, and
// returns it.
func Setup(cfg LoggerConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	log := slog.New(handler)
	slog.SetDefault(log)

	return log, nil
}

// WithLogger returns a context carrying the given logger, so downstream
// code can retrieve a scoped logger with FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext retrieves the logger stored in the context, falling back
// to the process default logger when none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}
