// Package debug provides global verbose tracing flags
package debug

import "github.com/teslashibe/sitposture/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame metric traces are shown.
// Use --debug-frames to enable these very verbose logs
var Frames bool

// Log emits a debug record only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Info(msg, args...)
	}
}

// FrameLog emits a per-frame trace only if frame tracing is enabled
func FrameLog(msg string, args ...any) {
	if Frames {
		log.Info(msg, args...)
	}
}
