// Package logger builds slog loggers configured for the current environment:
// JSON output for production log aggregation, human-readable text everywhere
// else.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Config holds logger configuration.
type Config struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"APP_ENV" envDefault:"development"`
}

// Option configures logger creation.
type Option func(*options)

type options struct {
	output io.Writer
	attrs  []slog.Attr
}

// WithOutput sets a custom output destination. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithAttr adds static attributes to every log record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// New creates a logger from config. Production environments get JSON output,
// everything else gets text.
func New(cfg Config, opts ...Option) *slog.Logger {
	o := &options{output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(o.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(o.output, handlerOpts)
	}

	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
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
