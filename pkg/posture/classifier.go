package posture

// Classify turns one frame's metrics into a posture state.
//
// cal must be the calibration state as it stood before this frame was
// observed, so the frame that closes the window still reports Initializing.
// While warming every frame is Initializing. Afterwards GoodPosture always
// applies, BadPosture applies when both tilts exceed tiltThreshold, and
// Nodding applies when the distance drops below the baseline; the highest
// priority among them wins.
func Classify(m Metrics, cal CalibrationState, tiltThreshold float64) State {
	if !cal.Calibrated {
		return Initializing
	}

	candidates := []State{GoodPosture}
	if m.EarTilt > tiltThreshold && m.EyeTilt > tiltThreshold {
		candidates = append(candidates, BadPosture)
	}
	if m.Distance < cal.Threshold {
		candidates = append(candidates, Nodding)
	}
	return Highest(candidates...)
}
