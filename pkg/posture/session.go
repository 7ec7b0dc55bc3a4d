// Package posture classifies seated posture frame by frame from pose
// landmarks: a nod check against a per-session distance baseline and a head
// tilt check on the eye and ear pairs.
package posture

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/debug"
	"github.com/teslashibe/sitposture/pkg/landmark"
)

// Result is what a session emits for one valid frame.
type Result struct {
	Frame int       `json:"frame"` // 1-based count of valid frames in the session
	At    time.Time `json:"at"`
	Metrics
	State     State   `json:"state"`
	Threshold float64 `json:"baseline_threshold,omitempty"`
}

// Session owns the calibration state of one camera stream. Frames must be
// fed from a single goroutine; use a Mailbox to hand frames across.
type Session struct {
	ID uuid.UUID

	cfg        Config
	calibrator *Calibrator
	logger     *slog.Logger

	frames  int
	skipped int
	last    Result
	hasLast bool
}

// NewSession validates cfg and starts a session in the warming state.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	s := &Session{
		ID:         id,
		cfg:        cfg,
		calibrator: NewCalibrator(cfg),
		logger:     log.With("session", id.String()),
	}
	s.logger.Info("posture session started",
		"calibration_frames", cfg.CalibrationFrames,
		"calibration_duration", cfg.CalibrationDuration,
		"nod_ratio", cfg.NodThresholdRatio,
		"tilt_threshold", cfg.TiltThresholdDegrees)
	return s, nil
}

// Process adapts raw estimator output and classifies it. Frames without
// landmarks return landmark.ErrMissingLandmarks and leave the session
// untouched; Last keeps returning the previous result.
func (s *Session) Process(raw landmark.Result, width, height int, at time.Time) (Result, error) {
	frame, err := landmark.Adapt(raw, width, height)
	if err != nil {
		s.Skip(err)
		return Result{}, err
	}
	return s.ProcessFrame(frame, at), nil
}

// Skip records a frame that could not be classified. Calibration and the
// last result are left as they are.
func (s *Session) Skip(reason error) {
	s.skipped++
	debug.FrameLog("frame skipped", "session", s.ID.String(), "reason", reason)
}

// ProcessFrame classifies an already adapted frame.
func (s *Session) ProcessFrame(frame landmark.Frame, at time.Time) Result {
	m := Measure(frame)

	before := s.calibrator.Snapshot()
	if !before.Calibrated && s.calibrator.Observe(m.Distance, at) {
		after := s.calibrator.Snapshot()
		s.logger.Info("calibration complete",
			"frames", after.FramesSeen,
			"mean_distance", after.AccumulatedDistance/float64(after.FramesSeen),
			"threshold", after.Threshold)
	}

	s.frames++
	res := Result{
		Frame:     s.frames,
		At:        at,
		Metrics:   m,
		State:     Classify(m, before, s.cfg.TiltThresholdDegrees),
		Threshold: before.Threshold,
	}

	if s.hasLast && res.State != s.last.State {
		s.logger.Debug("posture changed", "from", s.last.State, "to", res.State, "frame", res.Frame)
	}
	debug.FrameLog("frame classified",
		"session", s.ID.String(),
		"frame", res.Frame,
		"distance", m.Distance,
		"eye_tilt", m.EyeTilt,
		"ear_tilt", m.EarTilt,
		"state", res.State)

	s.last = res
	s.hasLast = true
	return res
}

// Last returns the most recent result, if any frame has been classified.
func (s *Session) Last() (Result, bool) {
	return s.last, s.hasLast
}

// Calibration returns a copy of the calibration state.
func (s *Session) Calibration() CalibrationState {
	return s.calibrator.Snapshot()
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Skipped returns how many frames had no usable landmarks.
func (s *Session) Skipped() int {
	return s.skipped
}
