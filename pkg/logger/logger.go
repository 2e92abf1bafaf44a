// Package logger provides the structured logging abstraction shared by the
// runtime. Handlers receive a Logger through their request value; the
// in-process invocation path injects Nop so handlers that log never crash
// when no real sink is configured.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields holds structured key/value pairs attached to log lines.
type Fields map[string]interface{}

// Logger is the minimal structured logging capability used across the
// runtime. Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)

	// WithFields returns a logger that attaches the given fields to every
	// subsequent line.
	WithFields(fields Fields) Logger
}

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	JSON   bool
	Output io.Writer
}

// logrusLogger adapts logrus to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

// New creates a logrus-backed Logger.
func New(cfg Config) Logger {
	l := logrus.New()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(msg string, fields Fields) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields Fields) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields Fields) {
	l.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields Fields) {
	l.entry.WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// nopLogger discards everything.
type nopLogger struct{}

// Nop returns a Logger that discards all output.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, Fields) {}
func (nopLogger) Info(string, Fields)  {}
func (nopLogger) Warn(string, Fields)  {}
func (nopLogger) Error(string, Fields) {}

func (n nopLogger) WithFields(Fields) Logger { return n }
