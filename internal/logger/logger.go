package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// New returns a text logger writing single, timestamp-free lines to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init initializes the global logger on stdout.
// DEBUG=true enables debug level logging.
func Init() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	InitLevel(level)
}

// InitLevel initializes the global logger on stdout at the given level.
// Only the first call has an effect.
func InitLevel(level slog.Level) {
	once.Do(func() {
		defaultLogger = New(os.Stdout, level)
		slog.SetDefault(defaultLogger)
	})
}

// Default returns the global logger, initializing it if needed.
// It is safe for concurrent use.
func Default() *slog.Logger {
	Init()
	return defaultLogger
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, args ...any) {
	Default().Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}
