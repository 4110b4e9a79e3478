// Package logging wraps charmbracelet/log with the verbose/non-verbose
// split the server's command set expects: Always fires regardless of
// settings, Verbose only when debug mode is on. It configures the
// package-level default logger rather than a private instance, so any
// code that still reaches for charmbracelet/log directly picks up the
// same level and formatting.
package logging

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var verbose atomic.Bool

func init() {
	log.SetReportTimestamp(true)
}

// SetVerbose toggles whether Verbose log calls are emitted. Called once at
// startup from the loaded Settings.Debug flag.
func SetVerbose(enabled bool) {
	verbose.Store(enabled)
	if enabled {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Always logs regardless of verbose mode.
func Always(msg string, keyvals ...interface{}) {
	log.Info(msg, keyvals...)
}

// Verbose logs only when verbose mode is enabled.
func Verbose(msg string, keyvals ...interface{}) {
	if verbose.Load() {
		log.Debug(msg, keyvals...)
	}
}

// Error always logs, at error level.
func Error(msg string, keyvals ...interface{}) {
	log.Error(msg, keyvals...)
}

// Warn always logs, at warn level.
func Warn(msg string, keyvals ...interface{}) {
	log.Warn(msg, keyvals...)
}
