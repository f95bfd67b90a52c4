// Package logging provides structured logging for the task board server.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. minLevel is one of debug, info, warn,
// error; unknown values fall back to info. Safe to call more than once; only
// the first call takes effect.
func Init(out io.Writer, minLevel string) {
	once.Do(func() {
		global = newLogger(out, minLevel)
	})
}

// Get returns the global logger instance, initializing a default one if
// Init was never called.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

func newLogger(out io.Writer, minLevel string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})

	level, err := logrus.ParseLevel(minLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// Fields is the context attached to a log line.
type Fields = logrus.Fields

// Debug logs a debug message with optional structured context.
func Debug(message string, fields ...Fields) {
	entry(fields).Debug(message)
}

// Info logs an info message with optional structured context.
func Info(message string, fields ...Fields) {
	entry(fields).Info(message)
}

// Warn logs a warning message with optional structured context.
func Warn(message string, fields ...Fields) {
	entry(fields).Warn(message)
}

// Error logs an error message. err may be nil.
func Error(message string, err error, fields ...Fields) {
	e := entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func entry(fields []Fields) *logrus.Entry {
	e := logrus.NewEntry(Get())
	for _, f := range fields {
		e = e.WithFields(f)
	}
	return e
}
