// Package logger provides leveled structured logging.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var defaultLogger *slog.Logger

// Init initializes the default logger with the specified level and format.
// Format "text" writes colored human-readable lines; anything else writes JSON.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, format string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      l,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func logf(level slog.Level, format string, args ...interface{}) {
	if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) {
	logf(slog.LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	logf(slog.LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	logf(slog.LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	logf(slog.LevelError, format, args...)
}
