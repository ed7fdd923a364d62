// Package suiteprefs provides default logging implementations.
package suiteprefs

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the various log levels.
// These correspond to slog's levels.
type LogLevel int

// Log level constants, mirroring slog levels for internal mapping.
const (
	LogLevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LogLevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LogLevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LogLevelError LogLevel = LogLevel(slog.LevelError)
)

// Logger defines the interface for logging operations.
// The args should be alternating key-value pairs, similar to slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	SetLevel(level LogLevel)
}

// defaultSlogLogger is an implementation of the Logger interface using the slog package.
type defaultSlogLogger struct {
	slogger  *slog.Logger
	levelVar *slog.LevelVar
}

// NewDefaultLogger returns a JSON slog logger writing to os.Stderr at Info level.
// The level can be changed later through SetLevel.
func NewDefaultLogger() Logger {
	return NewSlogLogger(os.Stderr, LogLevelInfo)
}

// NewSlogLogger returns a JSON slog logger writing to w at the given level.
func NewSlogLogger(w io.Writer, level LogLevel) Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(level))

	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}
	return &defaultSlogLogger{
		slogger:  slog.New(slog.NewJSONHandler(w, handlerOpts)),
		levelVar: levelVar,
	}
}

func (l *defaultSlogLogger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

func (l *defaultSlogLogger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

func (l *defaultSlogLogger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

func (l *defaultSlogLogger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// SetLevel changes the logging level dynamically.
func (l *defaultSlogLogger) SetLevel(level LogLevel) {
	if l.levelVar != nil {
		l.levelVar.Set(slog.Level(level))
	}
}

// zapLogger adapts a zap logger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger wraps l. The atomic level must be the one l was built with,
// otherwise SetLevel has no effect on output.
func NewZapLogger(l *zap.Logger, level zap.AtomicLevel) Logger {
	return &zapLogger{sugar: l.Sugar(), level: level}
}

func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *zapLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(zapLevel(level))
}

func zapLevel(level LogLevel) zapcore.Level {
	switch {
	case level <= LogLevelDebug:
		return zapcore.DebugLevel
	case level <= LogLevelInfo:
		return zapcore.InfoLevel
	case level <= LogLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ParseLogLevel maps "debug", "info", "warn" and "error" to a LogLevel.
// Unknown values map to Info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
