package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the application logger from the logging configuration.
// When a file is configured, output goes through lumberjack for rotation;
// otherwise it goes to stderr.
func InitLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	var writer io.Writer = os.Stderr
	toFile := cfg.File != ""

	if toFile {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		if cfg.Color && !toFile {
			handler = newLevelColorHandler(writer, opts)
		} else {
			handler = slog.NewTextHandler(writer, opts)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// ParseLogLevel maps a level name to a slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// levelColorHandler tints console log lines by level
type levelColorHandler struct {
	inner  slog.Handler
	writer io.Writer
	opts   *slog.HandlerOptions
}

func newLevelColorHandler(w io.Writer, opts *slog.HandlerOptions) *levelColorHandler {
	return &levelColorHandler{
		inner:  slog.NewTextHandler(w, opts),
		writer: w,
		opts:   opts,
	}
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[90m",
	slog.LevelInfo:  "\033[32m",
	slog.LevelWarn:  "\033[33m",
	slog.LevelError: "\033[31m",
}

func (h *levelColorHandler) Handle(ctx context.Context, r slog.Record) error {
	color, ok := levelColors[r.Level]
	if !ok {
		return h.inner.Handle(ctx, r)
	}

	var buf strings.Builder
	if err := slog.NewTextHandler(&buf, h.opts).Handle(ctx, r); err != nil {
		return err
	}

	line := buf.String()
	// Tint the leading token so the line is scannable by level
	if head, rest, found := strings.Cut(line, " "); found {
		line = color + head + "\033[0m " + rest
	} else {
		line = color + line + "\033[0m"
	}

	_, err := io.WriteString(h.writer, line)
	return err
}

func (h *levelColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelColorHandler{inner: h.inner.WithAttrs(attrs), writer: h.writer, opts: h.opts}
}

func (h *levelColorHandler) WithGroup(name string) slog.Handler {
	return &levelColorHandler{inner: h.inner.WithGroup(name), writer: h.writer, opts: h.opts}
}

func (h *levelColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}
