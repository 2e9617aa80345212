// Package dcontext carries a structured logger through a context.Context,
// adapted from distribution's internal/dcontext package: the engine is a
// single-threaded CLI, not a server, but we keep the same
// context-carried-logger shape so every component logs through one
// consistent, swappable sink instead of reaching for the global logrus
// logger directly.
package dcontext

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   *logrus.Entry = logrus.StandardLogger().WithField("go.version", runtime.Version())
	defaultLoggerMu sync.RWMutex
)

// Logger provides the leveled-logging surface the engine uses.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)

	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	WithError(err error) *logrus.Entry
	WithField(key string, value any) *logrus.Entry
}

type loggerKey struct{}

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger carried by ctx, or a process-wide default.
func GetLogger(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return logger
	}

	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetLevel adjusts the verbosity of the default logger (used by the CLI's
// -v/--verbose flag).
func SetLevel(level logrus.Level) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	logrus.SetLevel(level)
}

// Background returns context.Background() carrying the default logger,
// mirroring dcontext.Background() in the teacher package.
func Background() context.Context {
	return WithLogger(context.Background(), defaultLogger)
}
