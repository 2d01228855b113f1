// Package logging wraps log/slog with the console format used by opnwatch.
//
// Every logger derived from one New call shares its level, so a level
// change made on the root logger (SIGHUP reload) reaches the component
// loggers handed to the loop, the clients and the notifier.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is a slog.Logger plus the level it was built with.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Config selects the handler and level of a Logger.
type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig logs at info level to stderr in the console format.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler = NewConsoleHandler(cfg.Output, opts, cfg.TimeFormat)
	if cfg.JSON {
		h = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &Logger{Logger: slog.New(h), level: level}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(Config{Level: LevelError + 4, Output: io.Discard})
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Default returns the process logger, creating a console logger on first
// use.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// SetDefault replaces the process logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// WithComponent is Default().WithComponent(name).
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}

// ParseLevel maps a config string (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLevel changes the level of l and of every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// GetLevel returns the current level.
func (l *Logger) GetLevel() Level {
	return l.level.Level()
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// WithComponent tags every record with component=name. The console
// handler prints it ahead of the message.
func (l *Logger) WithComponent(name string) *Logger {
	return l.with("component", name)
}

// WithFields adds the given attributes to every record.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// Audit logs a change pushed to a remote appliance, always at info level.
func (l *Logger) Audit(action, resource string, details map[string]any) {
	args := make([]any, 0, 8+len(details)*2)
	args = append(args,
		"audit", true,
		"action", action,
		"resource", resource,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
	for k, v := range details {
		args = append(args, k, v)
	}
	l.Info("AUDIT", args...)
}
