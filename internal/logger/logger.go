// Package logger provides the application-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu   sync.RWMutex
	root hclog.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   "videoanalyzer",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
)

// Configure replaces the root logger. Call once at startup before any
// component grabs a named sub-logger.
func Configure(level string, output io.Writer, jsonFormat bool) {
	mu.Lock()
	defer mu.Unlock()

	if output == nil {
		output = os.Stderr
	}
	root = hclog.New(&hclog.LoggerOptions{
		Name:       "videoanalyzer",
		Level:      parseLevel(level),
		Output:     output,
		JSONFormat: jsonFormat,
	})
}

func parseLevel(level string) hclog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return hclog.Trace
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}

// Named returns a sub-logger for a component, e.g. Named("scanner").
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(name)
}

// Info logs informational messages
func Info(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Debug(msg, args...)
}
