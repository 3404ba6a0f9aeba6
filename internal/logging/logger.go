// Package logging defines the structured logger shared by both services.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/corn-moisture/platform/config"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "prediction stored", "id", id, "queue", queue)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

// New builds a slog logger writing to stdout.
func New(cfg config.LoggingConfig, service string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, service)
}

// NewWithWriter builds a slog logger for the given output. Format is json
// unless cfg.Format is "text".
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, service string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("service", service))
}

// Nop returns a logger that discards everything. Intended for tests.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
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
