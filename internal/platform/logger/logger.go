package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/scaffold-tracker/internal/config"
	"github.com/phrazzld/scaffold-tracker/internal/redact"
)

// ErrInvalidLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel maps a case-insensitive level name onto a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, name)
	}
}

// New builds a logger writing to w according to cfg. An invalid level falls
// back to info and a warning is written to w.
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level, err := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(handler)

	if err != nil {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	return logger
}

// Setup initializes the application's logging system and installs the logger
// as the slog default. Logs go to w, or to stderr when w is nil, so that
// stdout stays free for command output.
func Setup(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	if cfg.Format != "" && !strings.EqualFold(cfg.Format, "json") && !strings.EqualFold(cfg.Format, "text") {
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	if w == nil {
		w = os.Stderr
	}
	logger := New(w, cfg)
	slog.SetDefault(logger)
	return logger, nil
}

// redactAttr scrubs sensitive substrings from string and error attributes.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); s != "" {
			a.Value = slog.StringValue(redact.String(s))
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			a.Value = slog.StringValue(redact.Error(err))
		}
	}
	return a
}
