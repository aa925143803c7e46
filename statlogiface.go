package datalake

import (
	"time"

	"go.uber.org/zap"
)

// Statter is the interface that stats collectors must implement to get
// counters out of a pipeline run.
type Statter interface {
	Count(name string, value int64, rate float64, tags ...string)
	Gauge(name string, value float64, rate float64, tags ...string)
	Timing(name string, value time.Duration, rate float64, tags ...string)
}

// NopStatter does nothing.
type NopStatter struct{}

// Count does nothing.
func (NopStatter) Count(name string, value int64, rate float64, tags ...string) {}

// Gauge does nothing.
func (NopStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Timing does nothing.
func (NopStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// Logger is the interface that loggers must implement to get pipeline logs.
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// NopLogger logs nothing.
type NopLogger struct{}

// Printf does nothing.
func (NopLogger) Printf(format string, v ...interface{}) {}

// Debugf does nothing.
func (NopLogger) Debugf(format string, v ...interface{}) {}

// ZapLogger adapts a zap logger to Logger. Printf logs at info level and
// Debugf at debug level, so verbosity is whatever level the zap logger was
// built with.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l.
func NewZapLogger(l *zap.Logger) ZapLogger {
	return ZapLogger{s: l.Sugar()}
}

// Printf implements Logger interface.
func (z ZapLogger) Printf(format string, v ...interface{}) {
	z.s.Infof(format, v...)
}

// Debugf implements Logger interface.
func (z ZapLogger) Debugf(format string, v ...interface{}) {
	z.s.Debugf(format, v...)
}

// With returns a ZapLogger which adds the given key/value pairs to every entry.
func (z ZapLogger) With(keysAndValues ...interface{}) ZapLogger {
	return ZapLogger{s: z.s.With(keysAndValues...)}
}
