// Package monitoring holds the swappable diagnostic logger shared by the
// pipeline and store packages.
package monitoring

import (
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or mute
// it.
var Logf func(format string, v ...interface{}) = log.Printf

var debugEnabled = os.Getenv("MOTION_DEBUG") != ""

// Debugf logs only when MOTION_DEBUG is set in the environment. Used for
// high-frequency per-frame and per-blob telemetry that would swamp normal
// operation.
func Debugf(format string, v ...interface{}) {
	if debugEnabled {
		Logf(format, v...)
	}
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
