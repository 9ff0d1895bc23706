package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// Supported log output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatColor = "color"
)

// timeFormat is used by the colored console handler.
const timeFormat = "2006-01-02 15:04:05"

// ParseFormat normalizes a user-supplied format name.
// An empty name selects FormatText.
func ParseFormat(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatColor:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q: use text, json or color", name)
	}
}

// NewLogger builds a secret-masking logger writing to w.
// Verbose lowers the level from Info to Debug, which also surfaces
// per-step enrichment failures.
func NewLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case FormatColor:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  verbose,
			TimeFormat: timeFormat,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(NewSecureHandler(handler))
}

// NewSecureLogger creates a text logger with masking enabled.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, FormatText, verbose)
}

// Discard returns a logger that drops everything. Used as the default
// for components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
