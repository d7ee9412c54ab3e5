// Package log configures the process-wide slog logger.
//
// The engine logs to stderr so stdout stays free for diagnostic
// binaries that print reports.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init sets up the global logger. Level is one of "debug", "info",
// "warn", "error"; anything else falls back to info. Set
// AMBIENT_LOG_FORMAT=json for machine-readable output.
func Init(level string) {
	once.Do(func() {
		opts := &slog.HandlerOptions{Level: parseLevel(level)}

		var handler slog.Handler
		if strings.EqualFold(os.Getenv("AMBIENT_LOG_FORMAT"), "json") {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}

		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the global logger, initializing it at info level if Init
// has not run.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Component returns the global logger tagged for one engine component.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Error logs at error level on the global logger.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}
