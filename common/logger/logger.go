package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides a unified logging interface for the question answering pipeline.
// Output goes through zap; tests may switch to a no-op or observed core.

// LogLevel represents log severity levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  atomic.Pointer[zap.SugaredLogger]
)

func init() {
	base.Store(newSugared(false))
}

func newSugared(development bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Debugf logs a debug message
func Debugf(format string, args ...interface{}) {
	base.Load().Debugf(format, args...)
}

// Infof logs an info message
func Infof(format string, args ...interface{}) {
	base.Load().Infof(format, args...)
}

// Warnf logs a warning message
func Warnf(format string, args ...interface{}) {
	base.Load().Warnf(format, args...)
}

// Errorf logs an error message
func Errorf(format string, args ...interface{}) {
	base.Load().Errorf(format, args...)
}

// SetLevel sets the minimum log level
func SetLevel(l LogLevel) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a LogLevel.
// Unknown values resolve to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// UseDevelopment switches to zap's human-readable console encoder.
func UseDevelopment() {
	base.Store(newSugared(true))
}

// UseNop silences all output (useful for tests)
func UseNop() {
	base.Store(zap.NewNop().Sugar())
}

// UseCore routes output to the given core, e.g. an observer core in tests.
func UseCore(core zapcore.Core) {
	base.Store(zap.New(core, zap.AddCallerSkip(1)).Sugar())
}

// Sync flushes buffered entries.
func Sync() {
	_ = base.Load().Sync()
}

// ContextLogger carries fixed fields that are attached to every entry.
type ContextLogger struct {
	context map[string]interface{}
}

// WithContext creates a new logger with context
func WithContext(context map[string]interface{}) *ContextLogger {
	return &ContextLogger{context: context}
}

func (c *ContextLogger) sugared() *zap.SugaredLogger {
	l := base.Load()
	if len(c.context) == 0 {
		return l
	}
	kv := make([]interface{}, 0, len(c.context)*2)
	for k, v := range c.context {
		kv = append(kv, k, v)
	}
	return l.With(kv...)
}

// Debugf logs with context
func (c *ContextLogger) Debugf(format string, args ...interface{}) {
	c.sugared().Debugf(format, args...)
}

// Infof logs with context
func (c *ContextLogger) Infof(format string, args ...interface{}) {
	c.sugared().Infof(format, args...)
}

// Warnf logs with context
func (c *ContextLogger) Warnf(format string, args ...interface{}) {
	c.sugared().Warnf(format, args...)
}

// Errorf logs with context
func (c *ContextLogger) Errorf(format string, args ...interface{}) {
	c.sugared().Errorf(format, args...)
}
