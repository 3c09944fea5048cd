//go:build withcv
// +build withcv

/*
DESCRIPTION
  cv.go provides OpenCV backed frame grabbing from video files and devices,
  and an OpenCV window for operator interaction.

AUTHORS
  AusOcean Developers <dev@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt.  If not, see http://www.gnu.org/licenses.
*/

package source

import (
	"fmt"
	"image"
	"io"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"github.com/ausocean/camcal/pattern"
)

// Window key bindings.
const (
	keySpace = 32
	keyEnter = 13
	keyLF    = 10
	keyEsc   = 27
)

// CVGrabber reads frames with an OpenCV VideoCapture.
type CVGrabber struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
	log logging.Logger
}

// OpenVideo opens a video file.
func OpenVideo(path string, log logging.Logger) (*CVGrabber, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil || !vc.IsOpened() {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: could not open video %s", ErrResourceUnavailable, path)
	}
	log.Info("opened video", "path", path, "fps", vc.Get(gocv.VideoCaptureFPS), "frames", vc.Get(gocv.VideoCaptureFrameCount))
	return &CVGrabber{vc: vc, mat: gocv.NewMat(), log: log}, nil
}

// OpenDevice opens a capture device and requests the given frame size and
// rate. Devices may not honour the request; the actual values are logged.
func OpenDevice(id, width, height int, fps float64, log logging.Logger) (*CVGrabber, error) {
	vc, err := gocv.VideoCaptureDevice(id)
	if err != nil || !vc.IsOpened() {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: could not open camera %d", ErrResourceUnavailable, id)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	vc.Set(gocv.VideoCaptureFPS, fps)
	log.Info("opened camera", "id", id,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
		"fps", vc.Get(gocv.VideoCaptureFPS))
	return &CVGrabber{vc: vc, mat: gocv.NewMat(), log: log}, nil
}

// Grab implements Grabber.
func (g *CVGrabber) Grab() (image.Image, error) {
	if ok := g.vc.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, io.EOF
	}
	img, err := g.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("could not convert frame: %w", err)
	}
	return img, nil
}

// Close implements Grabber.
func (g *CVGrabber) Close() error {
	g.mat.Close()
	return g.vc.Close()
}

// Window is a Display backed by an OpenCV window. Space triggers, Enter
// confirms, Esc aborts and any other key rejects.
type Window struct {
	w   *gocv.Window
	det *pattern.CVDetector
}

// NewWindow opens a window with the given title. Detected corners are
// drawn with the grid of g.
func NewWindow(title string, g pattern.Geometry, log logging.Logger) *Window {
	return &Window{w: gocv.NewWindow(title), det: pattern.NewCVDetector(g, log)}
}

// Show implements Display.
func (w *Window) Show(frame image.Image, corners []r2.Point, found bool) {
	m, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return
	}
	defer m.Close()
	w.det.Draw(&m, corners, found)
	w.w.IMShow(m)
}

// Wait implements Display.
func (w *Window) Wait(d time.Duration) Signal {
	ms := 0
	if d > 0 {
		ms = int(d / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
	}
	switch key := w.w.WaitKey(ms); key {
	case -1:
		return None
	case keySpace:
		return Trigger
	case keyEnter, keyLF:
		return Confirm
	case keyEsc:
		return Abort
	default:
		return Reject
	}
}

// Close implements Display.
func (w *Window) Close() error {
	return w.w.Close()
}
