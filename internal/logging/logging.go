// Package logging initialises a [log/slog] logger from the buildwatch
// configuration and provides context-based logger propagation.
//
// Logs always go to stderr so that stdout carries only the watch status
// line and command output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/buildwatch/internal/config"
)

type ctxKey struct{}

// ComponentKey is the attribute key added by [Component].
const ComponentKey = "component"

// Setup creates a *slog.Logger configured according to cfg, writing to stderr,
// and installs it as the process-wide default via slog.SetDefault.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter creates a *slog.Logger configured according to cfg, writing
// to w, and installs it as the process-wide default via slog.SetDefault.
// Use this variant in tests to capture or suppress log output.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := slog.New(NewHandler(cfg, w))
	slog.SetDefault(logger)

	return logger
}

// NewHandler builds the handler Setup installs without touching the
// process-wide default. Debug level adds source locations.
func NewHandler(cfg *config.Config, w io.Writer) slog.Handler {
	level := ParseLevel(cfg.EffectiveLogLevel())
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	switch cfg.LogFormat {
	case config.LogFormatJSON:
		return slog.NewJSONHandler(w, opts)
	default: // text
		return slog.NewTextHandler(w, opts)
	}
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child of logger tagged with the subsystem name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return logger.With(slog.String(ComponentKey, name))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}
