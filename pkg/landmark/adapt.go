package landmark

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingLandmarks is returned when the estimator did not produce both
	// a world-space and an image-space result for the frame.
	ErrMissingLandmarks = errors.New("landmark: missing landmarks")

	// ErrFrameSize is returned when the frame dimensions are not positive.
	ErrFrameSize = errors.New("landmark: invalid frame size")
)

// Adapt converts raw estimator output into a Frame. Points keep their
// estimator order; a result with a different point count than the topology
// is treated as missing.
func Adapt(r Result, width, height int) (Frame, error) {
	var f Frame
	if !r.Detected() {
		return f, ErrMissingLandmarks
	}
	if len(r.World) != Count || len(r.Image) != Count {
		return f, fmt.Errorf("%w: got %d world and %d image points, want %d",
			ErrMissingLandmarks, len(r.World), len(r.Image), Count)
	}
	if width <= 0 || height <= 0 {
		return f, fmt.Errorf("%w: %dx%d", ErrFrameSize, width, height)
	}

	copy(f.World.Points[:], r.World)
	copy(f.Image.Points[:], r.Image)
	f.Image.Width = width
	f.Image.Height = height
	return f, nil
}
