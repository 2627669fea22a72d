package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// global is the process wide logger. Commands configure it once and derive
// their loggers from it with Sub.
var global = NewLogger("glidein", DefaultConfig())

// Configure configures the global logger.
func Configure(c Config) {
	global.Configure(c)
}

// Sub returns a logger in namespace ns that writes through the global
// logger, so later calls to Configure or SetOutput apply to it too.
func Sub(ns string) *Logger {
	return &Logger{base: global.base, fields: logrus.Fields{"ns": ns}}
}

// SetOutput sets the output for the global logger.
func SetOutput(w io.Writer) {
	global.SetOutput(w)
}

// Debug logs to the global logger at the Debug level.
func Debug(msg string, args ...interface{}) {
	global.Debug(msg, args...)
}

// Error logs to the global logger at the Error level.
func Error(msg string, args ...interface{}) {
	global.Error(msg, args...)
}
