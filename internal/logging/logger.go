package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"grimm.is/lswitch/internal/ratelimit"
)

// Level represents log severity levels.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	defaultLogger *Logger
	once          sync.Once

	defaultOutput io.Writer = os.Stderr
)

// Logger wraps slog with the two rate limiters a session needs: debug
// lines are bursty and cheap to drop, warnings are throttled harder since
// every one of them is operator-facing.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	output io.Writer
	rl     *ratelimit.Limiter
}

// Rate limits applied by DebugRL/WarnRL. A category exceeding its burst is
// silently dropped rather than buffered; logging must never block or queue.
const (
	debugBurst    = 30
	debugInterval = 1 * time.Second
	warnBurst     = 5
	warnInterval  = 1 * time.Second
)

// Config holds logger configuration.
type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     defaultOutput,
		JSON:       false,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = NewConsoleHandler(cfg.Output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  levelVar,
		output: cfg.Output,
		rl:     ratelimit.NewLimiter(),
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(DefaultConfig())
	})
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// SetLevel changes the log level dynamically.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	return l.level.Level()
}

// WithComponent returns a logger with a component field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
		level:  l.level,
		output: l.output,
		rl:     l.rl,
	}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
		output: l.output,
		rl:     l.rl,
	}
}

// DebugRL logs at debug level subject to the debug burst limiter, keyed by
// category so unrelated debug lines don't steal each other's budget.
func (l *Logger) DebugRL(category, msg string, args ...any) {
	if !l.rl.Allow("debug:"+category, debugBurst, debugInterval) {
		return
	}
	l.Debug(msg, args...)
}

// WarnRL logs at warn level subject to the (tighter) warning limiter.
func (l *Logger) WarnRL(category, msg string, args ...any) {
	if !l.rl.Allow("warn:"+category, warnBurst, warnInterval) {
		return
	}
	l.Warn(msg, args...)
}

// InfoRL logs at info level subject to the warning limiter; used for the
// WOULD_BLOCK disposition, which is expected but should not flood the log.
func (l *Logger) InfoRL(category, msg string, args ...any) {
	if !l.rl.Allow("info:"+category, warnBurst, warnInterval) {
		return
	}
	l.Info(msg, args...)
}

// Package-level convenience functions using default logger

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...any) {
	Default().Error(fmt.Sprintf(format, args...))
}

// WithComponent returns a component-scoped logger.
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}
