package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/monitor"
	"gocv.io/x/gocv"
)

// ErrClosed is returned when reading from a closed source.
var ErrClosed = errors.New("camera: closed")

// Source reads frames from a gocv VideoCapture and JPEG-encodes them.
// It implements monitor.Source.
type Source struct {
	cfg     Config
	capture *gocv.VideoCapture
	img     gocv.Mat
	mu      sync.Mutex // Protects capture and img

	closed bool
}

// Open starts capturing from cfg.Device.
func Open(cfg Config) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}

	if cfg.IsDevice() {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	log.Info("camera opened",
		"device", cfg.Device,
		"width", int(capture.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(capture.Get(gocv.VideoCaptureFrameHeight)),
		"fps", capture.Get(gocv.VideoCaptureFPS))

	return &Source{
		cfg:     cfg,
		capture: capture,
		img:     gocv.NewMat(),
	}, nil
}

// Next captures one frame. A failed read ends the stream with io.EOF.
func (s *Source) Next(ctx context.Context) (monitor.Frame, error) {
	if err := ctx.Err(); err != nil {
		return monitor.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return monitor.Frame{}, ErrClosed
	}

	if ok := s.capture.Read(&s.img); !ok || s.img.Empty() {
		log.Info("camera stream ended", "device", s.cfg.Device)
		return monitor.Frame{}, io.EOF
	}
	at := time.Now()

	if s.cfg.Mirror {
		gocv.Flip(s.img, &s.img, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.img, []int{gocv.IMWriteJpegQuality, s.cfg.Quality})
	if err != nil {
		return monitor.Frame{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	return monitor.Frame{
		JPEG:   bytes.Clone(buf.GetBytes()),
		Width:  s.img.Cols(),
		Height: s.img.Rows(),
		At:     at,
	}, nil
}

// Close releases the capture device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.img.Close()
	return s.capture.Close()
}
