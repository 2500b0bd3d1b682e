// Package logging is the leveled logger shared by the analyzer, the
// front-ends and the CLI. Debug, info and warning lines are only written in
// verbose mode; errors are always written.
package logging

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	// Logger is the underlying writer. Safe for concurrent use.
	Logger *log.Logger

	verbose atomic.Bool
)

func init() {
	Logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)

	// --verbose overrides this through SetVerbose.
	verbose.Store(os.Getenv("ESSENCE_VERBOSE") == "1")
}

// SetVerbose enables or disables verbose logging at runtime.
func SetVerbose(enabled bool) {
	verbose.Store(enabled)
}

// Verbose reports whether verbose logging is enabled.
func Verbose() bool {
	return verbose.Load()
}

// SetOutput redirects logger output.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// Debugf prints a debug message when verbose mode is enabled.
func Debugf(format string, args ...interface{}) {
	if verbose.Load() {
		Logger.Printf("[DEBUG] "+format, args...)
	}
}

// Infof prints a progress message when verbose mode is enabled.
func Infof(format string, args ...interface{}) {
	if verbose.Load() {
		Logger.Printf("[INFO] "+format, args...)
	}
}

// Warnf prints a warning when verbose mode is enabled. Per-function
// failures are logged here; they also land in the report.
func Warnf(format string, args ...interface{}) {
	if verbose.Load() {
		Logger.Printf("[WARN] "+format, args...)
	}
}

// Errorf prints regardless of verbose mode.
func Errorf(format string, args ...interface{}) {
	Logger.Printf("[ERROR] "+format, args...)
}
