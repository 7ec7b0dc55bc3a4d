package posture

import "time"

// CalibrationState is the per-session nod baseline. Once Calibrated is set
// it never changes again.
type CalibrationState struct {
	FramesSeen          int     `json:"frames_seen"`
	AccumulatedDistance float64 `json:"accumulated_distance"`
	Threshold           float64 `json:"baseline_threshold"`
	Calibrated          bool    `json:"calibrated"`
}

// Calibrator accumulates the distance metric over the warm-up window and
// derives the nod threshold from it. It is not safe for concurrent use.
type Calibrator struct {
	window   int
	duration time.Duration
	ratio    float64

	state   CalibrationState
	started time.Time
}

// NewCalibrator creates a calibrator in the warming state.
// cfg is expected to be validated.
func NewCalibrator(cfg Config) *Calibrator {
	return &Calibrator{
		window:   cfg.CalibrationFrames,
		duration: cfg.CalibrationDuration,
		ratio:    cfg.NodThresholdRatio,
	}
}

// Observe adds one valid frame's distance. It returns true on the frame that
// closes the window. Calls after calibration are ignored.
func (c *Calibrator) Observe(distance float64, at time.Time) bool {
	if c.state.Calibrated {
		return false
	}
	if c.state.FramesSeen == 0 {
		c.started = at
	}

	c.state.FramesSeen++
	c.state.AccumulatedDistance += distance

	if !c.windowClosed(at) {
		return false
	}

	mean := c.state.AccumulatedDistance / float64(c.state.FramesSeen)
	c.state.Threshold = mean * c.ratio
	c.state.Calibrated = true
	return true
}

func (c *Calibrator) windowClosed(at time.Time) bool {
	if c.duration > 0 {
		return at.Sub(c.started) >= c.duration
	}
	return c.state.FramesSeen >= c.window
}

// Calibrated reports whether the threshold has been fixed.
func (c *Calibrator) Calibrated() bool {
	return c.state.Calibrated
}

// Threshold returns the nod threshold once calibrated.
func (c *Calibrator) Threshold() (float64, bool) {
	return c.state.Threshold, c.state.Calibrated
}

// Snapshot returns a copy of the current state.
func (c *Calibrator) Snapshot() CalibrationState {
	return c.state
}
