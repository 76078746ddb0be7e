// Package logging provides the structured leveled logger used across navstack: a
// named logger with structured "...w" call sites backed by zap, and Sublogger for
// per-component children. There is no remote log-level registry or network appender
// here — navstack is a single process with no remote management surface.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used throughout navstack.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	// Sublogger returns a child logger whose name is "parent.name".
	Sublogger(name string) Logger
}

type impl struct {
	name  string
	sugar *zap.SugaredLogger
}

// NewLogger constructs a named, INFO-level logger writing to stderr.
func NewLogger(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	z, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a bad sink/encoder
		// configuration, which cannot happen with the literal config above.
		panic(err)
	}
	return &impl{name: name, sugar: z.Sugar().Named(name)}
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

func (l *impl) Sublogger(name string) Logger {
	return &impl{name: l.name + "." + name, sugar: l.sugar.Named(name)}
}
