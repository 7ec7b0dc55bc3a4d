package estimator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/debug"
	"github.com/teslashibe/sitposture/pkg/landmark"
)

// DefaultURL is where the pose sidecar listens by default.
const DefaultURL = "ws://127.0.0.1:8765/pose"

// RemoteConfig holds the sidecar connection settings.
type RemoteConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration // per frame, when ctx has no deadline

	// Backoff between failed redials, doubling up to MaxReconnectDelay.
	// The first redial after a lost connection is immediate.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultRemoteConfig returns defaults for a sidecar on localhost.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		URL:               DefaultURL,
		HandshakeTimeout:  5 * time.Second,
		RequestTimeout:    2 * time.Second,
		ReconnectDelay:    500 * time.Millisecond,
		MaxReconnectDelay: 10 * time.Second,
	}
}

// poseResponse is the sidecar reply for one frame.
type poseResponse struct {
	landmark.Result
	Error string `json:"error,omitempty"`
}

// Remote sends frames over a websocket to a pose estimation sidecar. Each
// binary JPEG message is answered by one JSON text message.
//
// A failed send or read drops the connection, since a reply may still be in
// flight on it. The next Estimate redials.
type Remote struct {
	cfg    RemoteConfig
	dialer websocket.Dialer

	mu     sync.Mutex      // one request in flight
	conn   *websocket.Conn // nil while disconnected
	closed bool

	failures int       // consecutive failed redials
	retryAt  time.Time // no redial before this
}

// Dial connects to the sidecar.
func Dial(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	r := &Remote{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}

	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.conn = conn
	return r, nil
}

func (r *Remote) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("estimator: connect %s: %w", r.cfg.URL, err)
	}
	return conn, nil
}

// Estimate implements Estimator.
func (r *Remote) Estimate(ctx context.Context, jpeg []byte) (landmark.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return landmark.Result{}, ErrClosed
	}
	if r.conn == nil {
		if err := r.reconnect(ctx); err != nil {
			return landmark.Result{}, err
		}
	}
	conn := r.conn

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(r.cfg.RequestTimeout)
	}

	// Unblock the read if ctx is cancelled before the reply lands.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
		r.disconnect(err)
		return landmark.Result{}, fmt.Errorf("estimator: send frame: %w", err)
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		r.disconnect(err)
		if ctx.Err() != nil {
			return landmark.Result{}, ctx.Err()
		}
		return landmark.Result{}, fmt.Errorf("estimator: read landmarks: %w", err)
	}

	var resp poseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return landmark.Result{}, fmt.Errorf("estimator: decode landmarks: %w", err)
	}
	if resp.Error != "" {
		return landmark.Result{}, fmt.Errorf("estimator: sidecar: %s", resp.Error)
	}
	return resp.Result, nil
}

// disconnect closes a connection that can no longer be trusted. Any late
// reply to an abandoned request goes down with it.
func (r *Remote) disconnect(cause error) {
	if r.conn == nil {
		return
	}
	r.conn.Close()
	r.conn = nil
	log.Warn("pose sidecar connection lost", "url", r.cfg.URL, "error", cause)
}

// reconnect redials unless the backoff from the last failed attempt is
// still running.
func (r *Remote) reconnect(ctx context.Context) error {
	now := time.Now()
	if now.Before(r.retryAt) {
		return ErrDisconnected
	}

	debug.Log("pose sidecar redial", "url", r.cfg.URL, "attempt", r.failures+1)
	conn, err := r.dial(ctx)
	if err != nil {
		r.failures++
		delay := backoff(r.failures, r.cfg.ReconnectDelay, r.cfg.MaxReconnectDelay)
		r.retryAt = now.Add(delay)
		log.Warn("pose sidecar reconnect failed", "error", err, "retry_in", delay)
		return err
	}

	r.conn = conn
	r.failures = 0
	r.retryAt = time.Time{}
	log.Info("pose sidecar reconnected", "url", r.cfg.URL)
	return nil
}

// backoff returns base doubled for every failure after the first, capped
// at limit.
func backoff(failures int, base, limit time.Duration) time.Duration {
	delay := base
	for i := 1; i < failures && delay < limit; i++ {
		delay *= 2
	}
	if limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

// Close implements Estimator.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.conn == nil {
		return nil
	}

	r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := r.conn.Close()
	r.conn = nil
	return err
}
