/*
DESCRIPTION
  source_test.go provides testing for the folder, video and camera sources
  using scripted grabbers and displays.

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
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
)

// Frame contents understood by fakeDetector.
var (
	plain   = imaging.New(8, 8, color.NRGBA{A: 0xff})
	board   = imaging.New(8, 8, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	corners = []r2.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}}
)

// fakeDetector finds the pattern in frames whose first pixel is white.
type fakeDetector struct{ calls int }

func (d *fakeDetector) Detect(img image.Image) ([]r2.Point, bool) {
	d.calls++
	if r, _, _, _ := img.At(0, 0).RGBA(); r == 0xffff {
		return corners, true
	}
	return nil, false
}

// sliceGrabber returns its frames in order, then io.EOF.
type sliceGrabber struct {
	frames []image.Image
	closed bool
}

func (g *sliceGrabber) Grab() (image.Image, error) {
	if len(g.frames) == 0 {
		return nil, io.EOF
	}
	f := g.frames[0]
	g.frames = g.frames[1:]
	return f, nil
}

func (g *sliceGrabber) Close() error { g.closed = true; return nil }

// scriptDisplay returns scripted signals, one per Wait, then None.
type scriptDisplay struct {
	signals []Signal
	shown   int
	waits   []time.Duration
}

func (d *scriptDisplay) Show(image.Image, []r2.Point, bool) { d.shown++ }

func (d *scriptDisplay) Wait(t time.Duration) Signal {
	d.waits = append(d.waits, t)
	if len(d.signals) == 0 {
		return None
	}
	s := d.signals[0]
	d.signals = d.signals[1:]
	return s
}

func (d *scriptDisplay) Close() error { return nil }

// drain reads captures until an error and returns both.
func drain(t *testing.T, s Source) ([]*Capture, error) {
	t.Helper()
	var caps []*Capture
	for i := 0; i < 1000; i++ {
		c, err := s.Next()
		if err != nil {
			return caps, err
		}
		caps = append(caps, c)
	}
	t.Fatal("source did not terminate")
	return nil, nil
}

func TestFolder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "c.png"} {
		if err := imaging.Save(board, filepath.Join(dir, name)); err != nil {
			t.Fatalf("could not write image: %v", err)
		}
	}
	for name, content := range map[string]string{
		"notes.txt": "hello",
		"d.PNG":     "upper case extension",
		"e.png":     "not really a png",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("could not write file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatalf("could not make directory: %v", err)
	}

	f, err := NewFolder(dir, (*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create folder source: %v", err)
	}
	if f.Len() != 4 {
		t.Errorf("did not get expected listing length. Got: %d, Want: %d", f.Len(), 4)
	}

	caps, err := drain(t, f)
	if err != io.EOF {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, io.EOF)
	}
	var names []string
	for _, c := range caps {
		names = append(names, c.Name)
		if c.Frame.Bounds().Dx() != 8 {
			t.Errorf("did not get expected frame width for %s: %d", c.Name, c.Frame.Bounds().Dx())
		}
	}
	want := []string{"a.jpg", "b.png", "c.png"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("did not get expected frames. Got: %v, Want: %v", names, want)
	}
}

func TestFolderMissing(t *testing.T) {
	_, err := NewFolder(filepath.Join(t.TempDir(), "missing"), (*logging.TestLogger)(t))
	if !errors.Is(err, ErrResourceUnavailable) {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, ErrResourceUnavailable)
	}
}

func TestVideoNonInteractive(t *testing.T) {
	g := &sliceGrabber{frames: []image.Image{plain, board, plain}}
	v, err := NewVideo(g, WithInteractive(false))
	if err != nil {
		t.Fatalf("could not create video source: %v", err)
	}
	caps, err := drain(t, v)
	if err != io.EOF {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, io.EOF)
	}
	if len(caps) != 3 {
		t.Errorf("did not get expected capture count. Got: %d, Want: %d", len(caps), 3)
	}
	for _, c := range caps {
		if c.Detected {
			t.Errorf("non-interactive capture %s was detected", c.Name)
		}
	}
	v.Close()
	if !g.closed {
		t.Errorf("grabber not closed")
	}
}

func TestVideoInteractive(t *testing.T) {
	tests := []struct {
		name    string
		frames  []image.Image
		signals []Signal
		want    int
		found   []bool
	}{
		{
			name:   "no signals",
			frames: []image.Image{board, board, board},
		},
		{
			name:    "confirm two",
			frames:  []image.Image{board, plain, board, board},
			signals: []Signal{Trigger, Confirm, None, None, Trigger, Confirm},
			want:    2,
			found:   []bool{true, true},
		},
		{
			name:    "reject",
			frames:  []image.Image{board, board},
			signals: []Signal{Trigger, Reject, Trigger, Confirm},
			want:    1,
			found:   []bool{true},
		},
		{
			name:    "confirm without pattern",
			frames:  []image.Image{plain},
			signals: []Signal{Trigger, Confirm},
			want:    1,
			found:   []bool{false},
		},
		{
			name:    "abort keeps earlier frames",
			frames:  []image.Image{board, board, board},
			signals: []Signal{Trigger, Confirm, Abort},
			want:    1,
			found:   []bool{true},
		},
		{
			name:    "abort during confirm",
			frames:  []image.Image{board, board},
			signals: []Signal{Trigger, Abort},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			disp := &scriptDisplay{signals: test.signals}
			v, err := NewVideo(
				&sliceGrabber{frames: test.frames},
				WithDisplay(disp),
				WithDetector(&fakeDetector{}),
				WithFPS(25),
				WithLogger((*logging.TestLogger)(t)),
			)
			if err != nil {
				t.Fatalf("could not create video source: %v", err)
			}
			caps, err := drain(t, v)
			if err != io.EOF {
				t.Errorf("did not get expected error. Got: %v, Want: %v", err, io.EOF)
			}
			if len(caps) != test.want {
				t.Fatalf("did not get expected capture count. Got: %d, Want: %d", len(caps), test.want)
			}
			for i, c := range caps {
				if !c.Detected || c.Found != test.found[i] {
					t.Errorf("did not get expected detection for capture %d. Got: %v/%v, Want: true/%v", i, c.Detected, c.Found, test.found[i])
				}
			}
			if len(disp.waits) != 0 && disp.waits[0] != 40*time.Millisecond {
				t.Errorf("did not get expected frame period. Got: %v, Want: %v", disp.waits[0], 40*time.Millisecond)
			}
		})
	}
}

func TestVideoOptions(t *testing.T) {
	g := &sliceGrabber{}
	if _, err := NewVideo(g); err == nil {
		t.Errorf("expected error for interactive video without a display")
	}
	if _, err := NewVideo(g, WithInteractive(false), WithFPS(0)); err == nil {
		t.Errorf("expected error for zero frame rate")
	}
}

func TestCamera(t *testing.T) {
	tests := []struct {
		name     string
		frames   []image.Image
		signals  []Signal
		want     int
		wantErr  error
		detected int
	}{
		{
			name:     "trigger then no pattern",
			frames:   []image.Image{board, plain, board, board},
			signals:  []Signal{Trigger},
			want:     0,
			wantErr:  io.EOF,
			detected: 4,
		},
		{
			name:     "trigger then pattern",
			frames:   []image.Image{plain, board, plain},
			signals:  []Signal{Trigger},
			want:     1,
			wantErr:  io.EOF,
			detected: 3,
		},
		{
			name:     "retry after miss",
			frames:   []image.Image{plain, plain, board, board},
			signals:  []Signal{Trigger, Trigger, Confirm},
			want:     1,
			wantErr:  io.EOF,
			detected: 3,
		},
		{
			name:     "confirm ignored before capture",
			frames:   []image.Image{board, board, board},
			signals:  []Signal{Confirm, Trigger, None, Confirm},
			want:     1,
			wantErr:  io.EOF,
			detected: 3,
		},
		{
			name:     "abort with nothing",
			frames:   []image.Image{board, board},
			signals:  []Signal{Abort},
			wantErr:  ErrAborted,
			detected: 1,
		},
		{
			name:     "abort with captures",
			frames:   []image.Image{board, board, board},
			signals:  []Signal{Trigger, None, Abort},
			want:     1,
			wantErr:  io.EOF,
			detected: 3,
		},
		{
			name:     "abort on capture frame",
			frames:   []image.Image{board, board, board},
			signals:  []Signal{Trigger, Abort},
			want:     1,
			wantErr:  io.EOF,
			detected: 2,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			det := &fakeDetector{}
			c, err := NewCamera(
				&sliceGrabber{frames: test.frames},
				WithDisplay(&scriptDisplay{signals: test.signals}),
				WithDetector(det),
				WithLogger((*logging.TestLogger)(t)),
			)
			if err != nil {
				t.Fatalf("could not create camera source: %v", err)
			}
			caps, err := drain(t, c)
			if !errors.Is(err, test.wantErr) {
				t.Errorf("did not get expected error. Got: %v, Want: %v", err, test.wantErr)
			}
			if len(caps) != test.want {
				t.Errorf("did not get expected capture count. Got: %d, Want: %d", len(caps), test.want)
			}
			if c.Accepted() != test.want {
				t.Errorf("did not get expected accepted count. Got: %d, Want: %d", c.Accepted(), test.want)
			}
			for _, cp := range caps {
				if !cp.Found || len(cp.Corners) != len(corners) {
					t.Errorf("capture %s has no pattern", cp.Name)
				}
			}
			if det.calls != test.detected {
				t.Errorf("did not get expected detection count. Got: %d, Want: %d", det.calls, test.detected)
			}
		})
	}
}

func TestCameraAutoCapture(t *testing.T) {
	var clock time.Time
	frames := []image.Image{board, board, board, board, board, board}
	c, err := NewCamera(
		&sliceGrabber{frames: frames},
		WithDisplay(&scriptDisplay{}),
		WithDetector(&fakeDetector{}),
		WithAutoCapture(2*time.Second),
	)
	if err != nil {
		t.Fatalf("could not create camera source: %v", err)
	}

	// Every reading of the clock advances it by half a second.
	c.now = func() time.Time {
		clock = clock.Add(500 * time.Millisecond)
		return clock
	}
	c.lastAuto = clock

	caps, err := drain(t, c)
	if err != io.EOF {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, io.EOF)
	}
	if len(caps) == 0 || len(caps) >= len(frames) {
		t.Errorf("did not get expected capture count. Got: %d, Want: between 1 and %d", len(caps), len(frames)-1)
	}
}
