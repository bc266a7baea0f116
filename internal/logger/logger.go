// Package logger is a process-wide structured logger backed by charmbracelet/log.
// Calls made before Init are dropped, which keeps library code and tests quiet.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Options configures the global logger.
type Options struct {
	Debug  bool
	JSON   bool
	Writer io.Writer // defaults to stderr
	Prefix string
}

var (
	mu       sync.RWMutex
	instance *log.Logger
)

// Init installs the global logger. Calling it again replaces the previous one.
func Init(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if opts.Debug {
		level = log.DebugLevel
	}
	lo := log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          opts.Prefix,
	}
	if opts.JSON {
		lo.Formatter = log.JSONFormatter
	}
	l := log.NewWithOptions(w, lo)
	mu.Lock()
	instance = l
	mu.Unlock()
}

// Reset drops the global logger so later calls are no-ops again.
func Reset() {
	mu.Lock()
	instance = nil
	mu.Unlock()
}

func get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Debug(message, keyvals...)
	}
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Error(message, keyvals...)
	}
}

// Writer returns an io.Writer that logs each write at INFO level, or
// io.Discard before Init. Used to route third-party loggers.
func Writer() io.Writer {
	l := get()
	if l == nil {
		return io.Discard
	}
	return l.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}).Writer()
}
