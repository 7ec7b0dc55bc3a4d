package main

import (
	"context"
	"fmt"

	"github.com/teslashibe/sitposture/pkg/monitor"
	"github.com/teslashibe/sitposture/pkg/overlay"
	"gocv.io/x/gocv"
)

// The preview window is centered on a screen of this size.
const (
	screenWidth  = 1920
	screenHeight = 1080
)

// window shows annotated frames. Pressing 'q' stops the monitor.
type window struct {
	win    *gocv.Window
	placed bool
}

func newWindow(title string) *window {
	return &window{win: gocv.NewWindow(title)}
}

// Emit implements monitor.Sink.
func (w *window) Emit(_ context.Context, obs monitor.Observation) error {
	img, err := gocv.IMDecode(obs.Frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("window: decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil
	}

	overlay.Draw(&img, obs)

	if !w.placed {
		w.win.ResizeWindow(img.Cols(), img.Rows())
		w.win.MoveWindow((screenWidth-img.Cols())/2, (screenHeight-img.Rows())/2)
		w.placed = true
	}
	w.win.IMShow(img)

	if w.win.WaitKey(1) == 'q' {
		return monitor.ErrStop
	}
	return nil
}

func (w *window) Close() error {
	return w.win.Close()
}
