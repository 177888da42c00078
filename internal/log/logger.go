// Package log wraps slog with field-name constants and a component
// discriminator, so every record names the subsystem that emitted it.
package log

import (
	"log/slog"
	"os"
)

// Logger stamps its component on every record it emits.
type Logger struct {
	*slog.Logger
	component string
}

// Config controls the handler, level and component of a new logger.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// New builds a logger writing text records to stdout, unless Config carries
// its own handler.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return &Logger{Logger: slog.New(handler), component: config.Component}
}

func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.Logger.Error(msg, append([]any{FieldComponent, l.component}, args...)...)
}

// SetDefault routes package-level slog calls through this logger's handler.
// Records logged that way carry whatever component their call site sets, not
// this logger's.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
