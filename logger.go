package statetree

import (
	"log"
	"os"
)

// Logger is the only ambient observability surface this package exposes -
// present purely as a pluggable interface, never a concrete dependency, the
// way the teacher keeps its oven example free of any particular logging
// library. A TreeBuilder logs a handful of diagnostic lines during
// Materialize (the declared-state count, then either the validation error
// or success) and
// nothing at runtime, since it never runs a machine itself.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// StdLogger is the default Logger, backed by the standard library's log
// package and used whenever a TreeBuilder isn't given one explicitly.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger builds a StdLogger writing to stderr, prefixed with name.
func NewStdLogger(name string) *StdLogger {
	prefix := "statetree"
	if name != "" {
		prefix = name
	}
	return &StdLogger{Logger: log.New(os.Stderr, "["+prefix+"] ", log.LstdFlags)}
}

// Debugf implements Logger.
func (l *StdLogger) Debugf(format string, args ...any) {
	l.Printf("DEBUG "+format, args...)
}

// Warnf implements Logger.
func (l *StdLogger) Warnf(format string, args ...any) {
	l.Printf("WARN "+format, args...)
}

// noopLogger discards everything; installed by WithNoopLogger.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}
