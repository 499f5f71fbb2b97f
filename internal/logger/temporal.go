package logger

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// temporalLogger feeds SDK, worker and workflow logs into zap under component=temporal.
type temporalLogger struct {
	sugar *zap.SugaredLogger
}

var (
	_ log.WithLogger      = (*temporalLogger)(nil)
	_ log.WithSkipCallers = (*temporalLogger)(nil)
)

func (l *Logger) GetTemporalLogger() log.Logger {
	return &temporalLogger{sugar: l.SugaredLogger.With("component", "temporal")}
}

func (t *temporalLogger) Debug(msg string, keyvals ...interface{}) { t.sugar.Debugw(msg, keyvals...) }
func (t *temporalLogger) Info(msg string, keyvals ...interface{})  { t.sugar.Infow(msg, keyvals...) }
func (t *temporalLogger) Warn(msg string, keyvals ...interface{})  { t.sugar.Warnw(msg, keyvals...) }
func (t *temporalLogger) Error(msg string, keyvals ...interface{}) { t.sugar.Errorw(msg, keyvals...) }

func (t *temporalLogger) With(keyvals ...interface{}) log.Logger {
	return &temporalLogger{sugar: t.sugar.With(keyvals...)}
}

func (t *temporalLogger) WithCallerSkip(depth int) log.Logger {
	return &temporalLogger{sugar: t.sugar.WithOptions(zap.AddCallerSkip(depth))}
}
