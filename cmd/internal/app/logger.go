package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates the process logger and installs it as the slog default. Format "pretty" writes
// a console layout to stderr; anything else writes JSON with source locations to stdout.
func NewLogger(level, format string) *slog.Logger {
	var w io.Writer = os.Stdout
	pretty := strings.EqualFold(strings.TrimSpace(format), "pretty")
	if pretty {
		w = os.Stderr
	}
	log := newLogger(w, level, pretty, pretty && colorEnabled())
	slog.SetDefault(log)
	return log
}

func newLogger(w io.Writer, level string, pretty, color bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	}
	if pretty {
		return slog.New(newPrettyHandler(w, opts, color))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
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

// colorEnabled honors NO_COLOR and VANISH_LOG_COLOR.
func colorEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return EnvBool("VANISH_LOG_COLOR", true)
}
