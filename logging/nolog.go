// Package logging adapts github.com/luxfi/log for use across the DHT
// core: every subsystem takes a log.Logger field at construction
// rather than reaching for a package-level default, and tests wire in
// NoLog to keep output quiet.
package logging

import (
	"context"
	"log/slog"

	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// NoLog is a no-op log.Logger, used in tests and anywhere a caller
// declines to wire in real logging.
type NoLog struct{}

// NewNoOpLogger returns a logger that discards everything written to it.
func NewNoOpLogger() log.Logger {
	return &NoLog{}
}

func (n NoLog) With(ctx ...interface{}) log.Logger { return n }
func (n NoLog) New(ctx ...interface{}) log.Logger  { return n }

func (NoLog) Log(level slog.Level, msg string, ctx ...interface{}) {}
func (NoLog) Trace(msg string, ctx ...interface{})                 {}
func (NoLog) Debug(msg string, ctx ...interface{})                 {}
func (NoLog) Info(msg string, ctx ...interface{})                  {}
func (NoLog) Warn(msg string, ctx ...interface{})                  {}
func (NoLog) Error(msg string, ctx ...interface{})                 {}
func (NoLog) Crit(msg string, ctx ...interface{})                  {}
func (NoLog) WriteLog(level slog.Level, msg string, attrs ...any)  {}

func (NoLog) Enabled(ctx context.Context, level slog.Level) bool { return false }
func (NoLog) Handler() slog.Handler                              { return nil }

func (NoLog) Fatal(msg string, fields ...zap.Field) {}
func (NoLog) Verbo(msg string, fields ...zap.Field) {}

func (n NoLog) WithFields(fields ...zap.Field) log.Logger  { return n }
func (n NoLog) WithOptions(opts ...zap.Option) log.Logger { return n }

func (NoLog) SetLevel(level slog.Level)         {}
func (NoLog) GetLevel() slog.Level              { return slog.Level(0) }
func (NoLog) EnabledLevel(lvl slog.Level) bool  { return false }

func (NoLog) StopOnPanic() {}
func (NoLog) RecoverAndPanic(f func()) {
	f()
}
func (NoLog) RecoverAndExit(f, exit func()) {
	f()
}
func (NoLog) Stop() {}

func (NoLog) Write(p []byte) (n int, err error) {
	return len(p), nil
}
