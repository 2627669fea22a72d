// Package logger provides a namespaced, structured logger built on logrus.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/sirupsen/logrus"
)

// Formatter is the interface used to format log entries.
type Formatter interface {
	Format(*logrus.Entry) ([]byte, error)
}

// Logger handles structured logging. Sub-loggers created with WithFields
// share output, level and formatter with their parent.
type Logger struct {
	base   *logrus.Logger
	fields logrus.Fields
}

// NewLogger returns a new Logger instance for the given namespace.
func NewLogger(ns string, conf Config) *Logger {
	base := logrus.New()
	base.Out = os.Stderr
	l := &Logger{base: base, fields: logrus.Fields{"ns": ns}}
	l.Configure(conf)
	return l
}

// SetLevel sets the level of logging.
func (l *Logger) SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		l.base.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		l.base.SetLevel(logrus.WarnLevel)
	case "error":
		l.base.SetLevel(logrus.ErrorLevel)
	default:
		l.base.SetLevel(logrus.InfoLevel)
	}
}

// SetFormatter sets the formatter of the logger.
func (l *Logger) SetFormatter(f Formatter) {
	l.base.Formatter = f
}

// SetOutput sets the output of the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.Out = w
}

// Discard configures the logger to discard all logs.
func (l *Logger) Discard() {
	l.SetOutput(io.Discard)
}

// Debug logs a debug message.
//
// After the first argument, arguments are key-value pairs which are written as structured logs.
//
//	log.Debug("Some message here", "key1", value1, "key2", value2)
func (l *Logger) Debug(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry(args...).Debug(msg)
}

// Info logs an info message.
//
//	log.Info("Some message here", "key1", value1, "key2", value2)
func (l *Logger) Info(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry(args...).Info(msg)
}

// Warn logs a warning message.
//
//	log.Warn("Some message here", "key1", value1, "key2", value2)
func (l *Logger) Warn(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry(args...).Warn(msg)
}

// Error logs an error message.
//
//	log.Error("Some message here", "key1", value1, "key2", value2)
//
// Error has a two-argument version that can be used as a shortcut.
//
//	err := startServer()
//	log.Error("Couldn't start server", err)
func (l *Logger) Error(msg string, args ...interface{}) {
	defer recoverLogErr()
	l.entry(args...).Error(msg)
}

// WithFields returns a new Logger instance with the given fields added to all log messages.
func (l *Logger) WithFields(args ...interface{}) *Logger {
	defer recoverLogErr()
	f := logrus.Fields{}
	for k, v := range l.fields {
		f[k] = v
	}
	for k, v := range fields(args...) {
		f[k] = v
	}
	return &Logger{base: l.base, fields: f}
}

func (l *Logger) entry(args ...interface{}) *logrus.Entry {
	return l.base.WithFields(l.fields).WithFields(fields(args...))
}

// recoverLogErr is used to recover from any panics during logging.
// Logging should never crash a program.
func recoverLogErr() {
	if r := recover(); r != nil {
		fmt.Fprintln(os.Stderr, "Recovered from logging panic", r)
	}
}

// PrintSimpleError prints out an error message with a red "ERROR:" prefix.
func PrintSimpleError(err error) {
	fmt.Fprintln(os.Stderr, aurora.Red("ERROR:"), err.Error())
}

func fields(args ...interface{}) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	if len(args) == 1 {
		if err, ok := args[0].(error); ok {
			f["error"] = err.Error()
		} else {
			f["unknown"] = args[0]
		}
		return f
	}
	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			k = fmt.Sprint(args[i])
		}
		v := args[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		f[k] = v
	}
	if len(args)%2 != 0 {
		f["unknown"] = args[len(args)-1]
	}
	return f
}
