// Package logger provides process-wide structured logging for syncbridge.
// Messages go to stderr as JSON unless stderr is a terminal, in which case
// a human-readable text format is used. Verbose mode lowers the level to debug
// so connection, retry and dispatch details become visible.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields = logrus.Fields

var (
	mu      sync.RWMutex
	verbose bool
	log     = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(formatterFor(w))
	return l
}

// formatterFor picks a text formatter for terminals and JSON otherwise.
func formatterFor(w io.Writer) logrus.Formatter {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
}

// SetVerbose enables or disables verbose (debug level) logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetLevel sets the minimum level from its name (debug, info, warn, error).
// Unknown names leave the level unchanged and return an error.
func SetLevel(name string) error {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", name, err)
	}
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(level)
	verbose = level >= logrus.DebugLevel
	return nil
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
	log.SetFormatter(formatterFor(w))
}

// Debug logs a message at debug level.
func Debug(format string, args ...any) {
	get().Debugf(format, args...)
}

// Info logs a message at info level.
func Info(format string, args ...any) {
	get().Infof(format, args...)
}

// Warn logs a message at warning level.
func Warn(format string, args ...any) {
	get().Warnf(format, args...)
}

// Error logs a message at error level.
func Error(format string, args ...any) {
	get().Errorf(format, args...)
}

// Section logs a section header in verbose mode.
func Section(name string) {
	get().WithField("section", name).Debugf("=== %s ===", name)
}

// WithFields returns an entry carrying the given structured fields.
func WithFields(fields Fields) *logrus.Entry {
	return get().WithFields(fields)
}

func get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}
