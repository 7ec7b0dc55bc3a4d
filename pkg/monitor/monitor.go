// Package monitor runs the per-frame loop: acquire a frame, estimate its
// landmarks, classify it in the session and hand the outcome to sinks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/debug"
	"github.com/teslashibe/sitposture/pkg/estimator"
	"github.com/teslashibe/sitposture/pkg/landmark"
	"github.com/teslashibe/sitposture/pkg/posture"
)

// ErrStop may be returned by a Sink to end the loop cleanly.
var ErrStop = errors.New("monitor: stop requested")

// Frame is one captured camera frame.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
	At     time.Time
}

// Source produces frames. Next returns io.EOF when the stream ends.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Observation is everything known about one frame after classification.
type Observation struct {
	Frame Frame

	// Landmarks is valid when Detected is set.
	Landmarks landmark.Frame
	Detected  bool

	// Result is this frame's result when Fresh, otherwise the last one
	// the session produced (if HasResult).
	Result    posture.Result
	HasResult bool
	Fresh     bool

	// Calibration is the session's calibration after this frame.
	Calibration posture.CalibrationState
}

// Sink consumes observations, e.g. a display window or the dashboard.
type Sink interface {
	Emit(ctx context.Context, obs Observation) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, obs Observation) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, obs Observation) error {
	return f(ctx, obs)
}

// Stats counts what the loop has done so far.
type Stats struct {
	Frames          int `json:"frames"`
	Classified      int `json:"classified"`
	Skipped         int `json:"skipped"`
	EstimatorErrors int `json:"estimator_errors"`
	Dropped         int `json:"dropped"`
}

// Monitor wires a source, an estimator and a session together.
type Monitor struct {
	source    Source
	estimator estimator.Estimator
	session   *posture.Session
	sinks     []Sink

	statsMu sync.Mutex
	stats   Stats
}

// capture is a frame plus its estimator output, before classification.
type capture struct {
	frame Frame
	raw   landmark.Result
	err   error
}

// New creates a monitor. The session must not be used elsewhere while the
// monitor runs.
func New(source Source, est estimator.Estimator, session *posture.Session, sinks ...Sink) *Monitor {
	return &Monitor{
		source:    source,
		estimator: est,
		session:   session,
		sinks:     sinks,
	}
}

// Run processes frames one at a time until the source ends, a sink returns
// ErrStop or ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		c, err := m.acquireOne(ctx)
		if err != nil {
			return finish(ctx, err)
		}
		if err := m.handle(ctx, c); err != nil {
			return finish(ctx, err)
		}
	}
}

// RunPipelined acquires and estimates frames on a separate goroutine and
// classifies them on the calling one. The two meet in a one-slot mailbox, so
// when classification falls behind only the newest frame is kept.
func (m *Monitor) RunPipelined(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	box := posture.NewMailbox[capture]()
	acquired := make(chan error, 1)

	go func() {
		for {
			c, err := m.acquireOne(ctx)
			if err != nil {
				acquired <- err
				return
			}
			if _, dropped := box.Put(c); dropped {
				m.count(func(s *Stats) { s.Dropped++ })
			}
		}
	}()

	for {
		select {
		case c := <-box.C():
			if err := m.handle(ctx, c); err != nil {
				return finish(ctx, err)
			}

		case err := <-acquired:
			// Classify whatever the acquirer left behind before stopping.
			select {
			case c := <-box.C():
				if herr := m.handle(ctx, c); herr != nil {
					return finish(ctx, herr)
				}
			default:
			}
			return finish(ctx, err)

		case <-ctx.Done():
			return nil
		}
	}
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Monitor) acquireOne(ctx context.Context) (capture, error) {
	if err := ctx.Err(); err != nil {
		return capture{}, err
	}

	frame, err := m.source.Next(ctx)
	if err != nil {
		return capture{}, err
	}
	m.count(func(s *Stats) { s.Frames++ })

	raw, err := m.estimator.Estimate(ctx, frame.JPEG)
	if errors.Is(err, estimator.ErrEndOfRecording) {
		return capture{}, io.EOF
	}
	return capture{frame: frame, raw: raw, err: err}, nil
}

func (m *Monitor) handle(ctx context.Context, c capture) error {
	obs := Observation{Frame: c.frame}

	switch {
	case c.err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.count(func(s *Stats) { s.EstimatorErrors++ })
		if errors.Is(c.err, estimator.ErrDisconnected) {
			debug.Log("pose estimator waiting to reconnect")
		} else {
			log.Warn("pose estimation failed", "error", c.err)
		}

	default:
		lm, err := landmark.Adapt(c.raw, c.frame.Width, c.frame.Height)
		if err != nil {
			m.session.Skip(err)
			m.count(func(s *Stats) { s.Skipped++ })
			break
		}
		obs.Landmarks = lm
		obs.Detected = true
		obs.Result = m.session.ProcessFrame(lm, c.frame.At)
		obs.HasResult = true
		obs.Fresh = true
		m.count(func(s *Stats) { s.Classified++ })
	}

	if !obs.Fresh {
		obs.Result, obs.HasResult = m.session.Last()
	}
	obs.Calibration = m.session.Calibration()

	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, obs); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) count(update func(*Stats)) {
	m.statsMu.Lock()
	update(&m.stats)
	m.statsMu.Unlock()
}

// finish maps the reasons a loop can end onto its return value.
func finish(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, ErrStop):
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil
	default:
		return fmt.Errorf("monitor: %w", err)
	}
}
