package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/sitposture/pkg/estimator"
	"github.com/teslashibe/sitposture/pkg/landmark"
	"github.com/teslashibe/sitposture/pkg/posture"
)

// fakeSource yields n frames, tagging each JPEG with its index.
type fakeSource struct {
	n    int
	next int
	t0   time.Time
}

func (s *fakeSource) Next(ctx context.Context) (Frame, error) {
	if s.next >= s.n {
		return Frame{}, io.EOF
	}
	i := s.next
	s.next++
	return Frame{
		JPEG:   []byte{byte(i)},
		Width:  640,
		Height: 480,
		At:     s.t0.Add(time.Duration(i) * 33 * time.Millisecond),
	}, nil
}

func (s *fakeSource) Close() error { return nil }

// body returns landmarks with the given mouth-to-shoulder distance and
// level eyes and ears.
func body(distance float64) landmark.Result {
	r := landmark.Result{
		World: make([]landmark.Point, landmark.Count),
		Image: make([]landmark.Point, landmark.Count),
	}
	r.World[landmark.LeftShoulder] = landmark.Point{X: -0.2, Y: distance}
	r.World[landmark.RightShoulder] = landmark.Point{X: 0.2, Y: distance}
	for _, pair := range [][2]int{{landmark.LeftEye, landmark.RightEye}, {landmark.LeftEar, landmark.RightEar}} {
		r.Image[pair[0]] = landmark.Point{X: 0.4, Y: 0.3}
		r.Image[pair[1]] = landmark.Point{X: 0.6, Y: 0.3}
	}
	return r
}

type recorder struct {
	mu   sync.Mutex
	seen []Observation
}

func (r *recorder) Emit(ctx context.Context, obs Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, obs)
	return nil
}

func newSession(t *testing.T, frames int) *posture.Session {
	t.Helper()
	cfg := posture.DefaultConfig()
	cfg.CalibrationFrames = frames
	s, err := posture.NewSession(cfg)
	require.NoError(t, err)
	return s
}

func TestMonitor_Run(t *testing.T) {
	// frame index -> estimator behaviour
	script := []func() (landmark.Result, error){
		func() (landmark.Result, error) { return body(0.2), nil },
		func() (landmark.Result, error) { return body(0.2), nil },
		func() (landmark.Result, error) { return landmark.Result{}, nil },
		func() (landmark.Result, error) { return body(0.05), nil },
		func() (landmark.Result, error) { return landmark.Result{}, errors.New("sidecar hiccup") },
		func() (landmark.Result, error) { return body(0.25), nil },
	}
	est := estimator.NewMock()
	est.EstimateFunc = func(ctx context.Context, jpeg []byte) (landmark.Result, error) {
		return script[jpeg[0]]()
	}

	rec := &recorder{}
	session := newSession(t, 2)
	m := New(&fakeSource{n: len(script)}, est, session, rec)
	require.NoError(t, m.Run(context.Background()))

	require.Len(t, rec.seen, len(script))
	states := []posture.State{}
	for _, obs := range rec.seen {
		states = append(states, obs.Result.State)
	}
	assert.Equal(t, []posture.State{
		posture.Initializing,
		posture.Initializing,
		posture.Initializing, // missing frame keeps the previous result
		posture.Nodding,
		posture.Nodding, // estimator error keeps the previous result
		posture.GoodPosture,
	}, states)

	assert.True(t, rec.seen[1].Fresh)
	assert.False(t, rec.seen[2].Fresh)
	assert.False(t, rec.seen[2].Detected)
	assert.True(t, rec.seen[2].HasResult)
	assert.False(t, rec.seen[4].Fresh)

	assert.Equal(t, Stats{Frames: 6, Classified: 4, Skipped: 1, EstimatorErrors: 1}, m.Stats())
	assert.Equal(t, 1, session.Skipped(), "the session sees landmark-less frames too")
}

func TestMonitor_SinkStops(t *testing.T) {
	est := estimator.NewMock()
	est.EstimateFunc = func(ctx context.Context, jpeg []byte) (landmark.Result, error) {
		return body(0.2), nil
	}

	calls := 0
	stopAfterTwo := SinkFunc(func(ctx context.Context, obs Observation) error {
		calls++
		if calls == 2 {
			return ErrStop
		}
		return nil
	})

	m := New(&fakeSource{n: 100}, est, newSession(t, 50), stopAfterTwo)
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestMonitor_SinkError(t *testing.T) {
	est := estimator.NewMock()
	boom := errors.New("display gone")
	m := New(&fakeSource{n: 3}, est, newSession(t, 1), SinkFunc(func(ctx context.Context, obs Observation) error {
		return boom
	}))

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestMonitor_ReplayEnds(t *testing.T) {
	est := estimator.NewMock()
	est.EstimateFunc = func(ctx context.Context, jpeg []byte) (landmark.Result, error) {
		if jpeg[0] == 2 {
			return landmark.Result{}, estimator.ErrEndOfRecording
		}
		return body(0.2), nil
	}

	rec := &recorder{}
	m := New(&fakeSource{n: 10}, est, newSession(t, 5), rec)
	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, rec.seen, 2)
}

func TestMonitor_KeepsRunningWhileEstimatorReconnects(t *testing.T) {
	est := estimator.NewMock()
	est.EstimateFunc = func(ctx context.Context, jpeg []byte) (landmark.Result, error) {
		if jpeg[0] >= 2 && jpeg[0] < 5 {
			return landmark.Result{}, estimator.ErrDisconnected
		}
		return body(0.2), nil
	}

	rec := &recorder{}
	m := New(&fakeSource{n: 8}, est, newSession(t, 1), rec)
	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, Stats{Frames: 8, Classified: 5, EstimatorErrors: 3}, m.Stats())
	require.Len(t, rec.seen, 8)
	assert.True(t, rec.seen[7].Fresh, "classification resumes once the estimator is back")
	assert.Equal(t, posture.GoodPosture, rec.seen[7].Result.State)
}

func TestMonitor_RunPipelined(t *testing.T) {
	est := estimator.NewMock()
	est.EstimateFunc = func(ctx context.Context, jpeg []byte) (landmark.Result, error) {
		if jpeg[0]%4 == 3 {
			return landmark.Result{}, nil
		}
		return body(0.2), nil
	}

	rec := &recorder{}
	m := New(&fakeSource{n: 40}, est, newSession(t, 5), rec)
	require.NoError(t, m.RunPipelined(context.Background()))

	st := m.Stats()
	assert.Equal(t, 40, st.Frames)
	assert.Equal(t, st.Frames, st.Classified+st.Skipped+st.EstimatorErrors+st.Dropped)
	assert.Len(t, rec.seen, st.Classified+st.Skipped)

	// frames reach the classifier in capture order
	var last time.Time
	for _, obs := range rec.seen {
		assert.False(t, obs.Frame.At.Before(last))
		last = obs.Frame.At
	}
}

func TestMonitor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(&fakeSource{n: 10}, estimator.NewMock(), newSession(t, 5))
	assert.NoError(t, m.Run(ctx))
	assert.NoError(t, m.RunPipelined(ctx))
	assert.Equal(t, 0, m.Stats().Classified)
}
