// Package estimator connects the posture engine to an external body-pose
// estimator. Landmark detection itself happens elsewhere; this package only
// moves frames out and landmark sets back in.
package estimator

import (
	"context"
	"errors"

	"github.com/teslashibe/sitposture/pkg/landmark"
)

// Sentinel errors for common conditions.
var (
	// ErrClosed is returned when estimating on a closed estimator.
	ErrClosed = errors.New("estimator: closed")

	// ErrDisconnected is returned while a lost sidecar connection waits
	// out its reconnect backoff.
	ErrDisconnected = errors.New("estimator: disconnected")

	// ErrEndOfRecording is returned when a replay has no frames left.
	ErrEndOfRecording = errors.New("estimator: end of recording")
)

// Estimator is the interface for pose estimation backends.
type Estimator interface {
	// Estimate returns the landmarks found in a JPEG-encoded frame.
	// A frame with nobody in it yields an empty Result and no error.
	Estimate(ctx context.Context, jpeg []byte) (landmark.Result, error)

	// Close releases resources
	Close() error
}
