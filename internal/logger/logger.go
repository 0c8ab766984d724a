// Package logger builds the process logger.  It is the same gommon logger
// echo uses internally, configured with a JSON header so access logs,
// service logs and background consumer logs share one format.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const jsonHeader = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

// Logger is the subset of the logger used by services and consumers.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// New returns a logger writing to stdout at the given level.
func New(prefix, level string) *log.Logger {
	return NewWithWriter(prefix, level, os.Stdout)
}

// NewWithWriter is like New but writes to w.
func NewWithWriter(prefix, level string, w io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(jsonHeader)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	return l
}

// Discard returns a logger that drops everything.  Used by tests.
func Discard() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}

// ParseLevel maps a LOG_LEVEL value to a gommon level, defaulting to INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
