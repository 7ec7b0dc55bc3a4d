package estimator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/sitposture/pkg/landmark"
)

func fullResult(x float64) landmark.Result {
	r := landmark.Result{
		World: make([]landmark.Point, landmark.Count),
		Image: make([]landmark.Point, landmark.Count),
	}
	for i := range r.World {
		r.World[i] = landmark.Point{X: x, Y: float64(i) / 100}
		r.Image[i] = landmark.Point{X: x, Y: 0.5}
	}
	return r
}

func TestReplay_Next(t *testing.T) {
	line := func(ms int64, x float64) string {
		data, _ := json.Marshal(Record{Width: 640, Height: 480, TimestampMS: ms, Result: fullResult(x)})
		return string(data)
	}
	input := strings.Join([]string{
		line(0, 0.1),
		"",
		`{"width":640,"height":480,"t_ms":33,"world_landmarks":[],"landmarks":[]}`,
		line(66, 0.3),
	}, "\n")

	rp := NewReplay(strings.NewReader(input))

	rec, err := rp.Next()
	require.NoError(t, err)
	assert.Equal(t, 640, rec.Width)
	assert.True(t, rec.Detected())
	assert.Equal(t, 0.1, rec.World[0].X)

	rec, err = rp.Next()
	require.NoError(t, err)
	assert.False(t, rec.Detected())
	assert.EqualValues(t, 33, rec.TimestampMS)

	res, err := rp.Estimate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, res.Image[0].X)

	_, err = rp.Next()
	assert.ErrorIs(t, err, ErrEndOfRecording)
	assert.NoError(t, rp.Close())
}

func TestReplay_BadLine(t *testing.T) {
	rp := NewReplay(strings.NewReader("{not json}\n"))
	_, err := rp.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func newSidecar(t *testing.T, reply func(frame []byte) any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			if err := conn.WriteJSON(reply(data)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRemote_Estimate(t *testing.T) {
	srv := newSidecar(t, func(frame []byte) any {
		if string(frame) == "empty" {
			return poseResponse{}
		}
		return poseResponse{Result: fullResult(0.42)}
	})

	cfg := DefaultRemoteConfig()
	cfg.URL = wsURL(srv)
	r, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Estimate(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.Len(t, res.World, landmark.Count)
	assert.Equal(t, 0.42, res.World[landmark.LeftShoulder].X)

	res, err = r.Estimate(context.Background(), []byte("empty"))
	require.NoError(t, err)
	assert.False(t, res.Detected())
}

func TestRemote_SidecarError(t *testing.T) {
	srv := newSidecar(t, func(frame []byte) any {
		return poseResponse{Error: "model not loaded"}
	})

	cfg := DefaultRemoteConfig()
	cfg.URL = wsURL(srv)
	r, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Estimate(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestRemote_Closed(t *testing.T) {
	srv := newSidecar(t, func(frame []byte) any { return poseResponse{} })

	cfg := DefaultRemoteConfig()
	cfg.URL = wsURL(srv)
	r, err := Dial(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Estimate(context.Background(), []byte("jpeg"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRemote_RecoversAfterSlowReply(t *testing.T) {
	var frames atomic.Int32
	srv := newSidecar(t, func(frame []byte) any {
		// Model warm-up on the first frame
		if frames.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		return poseResponse{Result: fullResult(0.42)}
	})

	cfg := DefaultRemoteConfig()
	cfg.URL = wsURL(srv)
	cfg.RequestTimeout = 100 * time.Millisecond
	r, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Estimate(context.Background(), []byte("jpeg"))
	require.Error(t, err, "first reply is slower than the request timeout")

	for i := 0; i < 3; i++ {
		res, err := r.Estimate(context.Background(), []byte("jpeg"))
		require.NoError(t, err, "frame %d after the slow reply", i)
		assert.Equal(t, 0.42, res.World[landmark.LeftShoulder].X)
	}
}

func TestRemote_ReconnectBackoff(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Accept one connection, then drop it without replying and refuse the rest
		if conns.Add(1) > 1 {
			http.Error(w, "sidecar restarting", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage()
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultRemoteConfig()
	cfg.URL = wsURL(srv)
	cfg.ReconnectDelay = time.Minute
	r, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Estimate(context.Background(), []byte("jpeg"))
	require.Error(t, err)

	_, err = r.Estimate(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
	assert.EqualValues(t, 2, conns.Load())

	// Backing off: no dial attempt
	_, err = r.Estimate(context.Background(), []byte("jpeg"))
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.EqualValues(t, 2, conns.Load())
}

func TestBackoff(t *testing.T) {
	base, limit := 500*time.Millisecond, 10*time.Second
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{6, 10 * time.Second},
		{40, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.failures, base, limit), "failures=%d", tt.failures)
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	res, err := m.Estimate(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Detected())
	assert.Equal(t, 1, m.Calls())

	m.Close()
	_, err = m.Estimate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
}
