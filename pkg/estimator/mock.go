package estimator

import (
	"context"
	"sync"

	"github.com/teslashibe/sitposture/pkg/landmark"
)

// Mock implements Estimator for testing.
type Mock struct {
	// EstimateFunc is called when Estimate is invoked.
	EstimateFunc func(ctx context.Context, jpeg []byte) (landmark.Result, error)

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMock creates a mock that always reports an empty frame.
func NewMock() *Mock {
	return &Mock{
		EstimateFunc: func(ctx context.Context, jpeg []byte) (landmark.Result, error) {
			return landmark.Result{}, nil
		},
	}
}

// Estimate calls EstimateFunc and records the call.
func (m *Mock) Estimate(ctx context.Context, jpeg []byte) (landmark.Result, error) {
	m.mu.Lock()
	m.calls++
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return landmark.Result{}, ErrClosed
	}
	if m.EstimateFunc == nil {
		return landmark.Result{}, nil
	}
	return m.EstimateFunc(ctx, jpeg)
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Estimate was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
