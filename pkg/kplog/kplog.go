// Package kplog is the structured logging façade used throughout
// pkg/kgo. It keeps the teacher's call shape — a single Log(level,
// msg, keyvals...) method threaded through every state transition of
// a broker connection — but backs it with github.com/go-kit/log
// instead of a hand-rolled writer, and adds a LogLevel gate so debug
// traces do not cost anything when disabled.
package kplog

import (
	"os"

	kitlog "github.com/go-kit/log"
)

// LogLevel orders the severities this module's components log at.
type LogLevel int8

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "none"
	}
}

// Logger is the interface pkg/kgo components log through.
type Logger interface {
	Log(level LogLevel, msg string, keyvals ...interface{})
}

// basic wraps a go-kit/log.Logger, filtering by a minimum level.
type basic struct {
	min LogLevel
	kl  kitlog.Logger
}

// New returns a Logger writing logfmt lines to w, keeping only
// messages at or above min.
func New(w interface {
	Write([]byte) (int, error)
}, min LogLevel) Logger {
	return &basic{min: min, kl: kitlog.With(kitlog.NewLogfmtLogger(w), "ts", kitlog.DefaultTimestampUTC)}
}

// NewStdout is the default logger used when Config.Debug requests
// printing to stdout.
func NewStdout(min LogLevel) Logger { return New(os.Stdout, min) }

// Nop discards everything; it is the default when debugging is off.
func Nop() Logger { return &basic{min: LogLevelNone, kl: kitlog.NewNopLogger()} }

func (b *basic) Log(level LogLevel, msg string, keyvals ...interface{}) {
	if level > b.min || b.min == LogLevelNone {
		return
	}
	kv := append([]interface{}{"level", level.String(), "msg", msg}, keyvals...)
	_ = b.kl.Log(kv...)
}
