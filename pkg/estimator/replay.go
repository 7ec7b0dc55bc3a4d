package estimator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/sitposture/pkg/landmark"
)

// maxRecordSize bounds one JSON line; a 33-point frame is a few KB.
const maxRecordSize = 1 << 20

// Record is one line of a landmark recording.
type Record struct {
	Width       int   `json:"width"`
	Height      int   `json:"height"`
	TimestampMS int64 `json:"t_ms,omitempty"`
	landmark.Result
}

// Time returns the record timestamp relative to start.
func (r Record) Time(start time.Time) time.Time {
	return start.Add(time.Duration(r.TimestampMS) * time.Millisecond)
}

// Replay plays back a JSON-lines landmark recording, one record per frame.
// It also serves as an Estimator that ignores the frame it is given.
type Replay struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	mu      sync.Mutex
}

// NewReplay reads records from r.
func NewReplay(r io.Reader) *Replay {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	rp := &Replay{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		rp.closer = c
	}
	return rp
}

// OpenReplay opens a recording file.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("estimator: open recording: %w", err)
	}
	return NewReplay(f), nil
}

// Next returns the next record. Blank lines are skipped.
func (r *Replay) Next() (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return Record{}, fmt.Errorf("estimator: recording line %d: %w", r.line, err)
		}
		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("estimator: read recording: %w", err)
	}
	return Record{}, ErrEndOfRecording
}

// Estimate implements Estimator by returning the next recorded result.
func (r *Replay) Estimate(ctx context.Context, jpeg []byte) (landmark.Result, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Result{}, err
	}
	rec, err := r.Next()
	if err != nil {
		return landmark.Result{}, err
	}
	return rec.Result, nil
}

// Close implements Estimator.
func (r *Replay) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
