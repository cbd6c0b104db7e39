package logging

import (
	tlog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// temporalLogger routes Temporal SDK logs (client, worker, workflow and
// activity loggers) through zap.
type temporalLogger struct {
	s *zap.SugaredLogger
}

func Temporal(l *zap.Logger) tlog.Logger {
	return temporalLogger{s: l.Named("temporal").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (t temporalLogger) Debug(msg string, keyvals ...interface{}) { t.s.Debugw(msg, keyvals...) }
func (t temporalLogger) Info(msg string, keyvals ...interface{})  { t.s.Infow(msg, keyvals...) }
func (t temporalLogger) Warn(msg string, keyvals ...interface{})  { t.s.Warnw(msg, keyvals...) }
func (t temporalLogger) Error(msg string, keyvals ...interface{}) { t.s.Errorw(msg, keyvals...) }

// With lets workflow and activity loggers carry their tags.
func (t temporalLogger) With(keyvals ...interface{}) tlog.Logger {
	return temporalLogger{s: t.s.With(keyvals...)}
}
