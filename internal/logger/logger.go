// Package logger builds the process slog.Logger: colored console output via
// tint on terminals, JSON when configured.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"stageline/internal/config"
)

var atomicLevel = new(slog.LevelVar)

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New builds a logger from cfg and installs it as the slog default.
func New(cfg config.LoggerConfig) (*slog.Logger, error) {
	atomicLevel.Set(ParseLevel(cfg.Level))

	var writer io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr", "":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer = file
	}

	l := slog.New(newHandler(writer, cfg.Format))
	slog.SetDefault(l)
	return l, nil
}

func newHandler(w io.Writer, format string) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      atomicLevel,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// SetLevel changes the level of loggers built by New.
func SetLevel(level slog.Level) {
	atomicLevel.Set(level)
}

// Discard returns a logger that drops everything, for tests and embedding.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
