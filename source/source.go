/*
DESCRIPTION
  source.go defines the frame sources that feed calibration and the
  operator controls they respond to.

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

// Package source provides calibration frames from a folder of images, a
// video file or a live camera.
package source

import (
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/golang/geo/r2"

	"github.com/ausocean/camcal/pattern"
)

// Errors returned by sources.
var (
	ErrResourceUnavailable = errors.New("input resource unavailable")
	ErrAborted             = errors.New("acquisition aborted")
)

// Capture is a frame accepted for calibration. Detected is true if the
// source has already run detection, in which case Corners and Found hold
// its result.
type Capture struct {
	Frame    image.Image
	Name     string
	Corners  []r2.Point
	Found    bool
	Detected bool
}

// Source provides accepted frames in order. Next returns io.EOF when the
// source is exhausted or the operator finishes, and ErrAborted if the
// operator aborts with nothing accepted.
type Source interface {
	Next() (*Capture, error)
	Close() error
}

// Grabber reads raw frames from a video file or device. Grab returns
// io.EOF when no more frames are available.
type Grabber interface {
	Grab() (image.Image, error)
	Close() error
}

// Signal is an operator input.
type Signal int

// Operator signals.
const (
	None Signal = iota
	Trigger
	Confirm
	Reject
	Abort
)

func (s Signal) String() string {
	switch s {
	case None:
		return "none"
	case Trigger:
		return "trigger"
	case Confirm:
		return "confirm"
	case Reject:
		return "reject"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Display shows frames to the operator and reports their signals. Wait
// blocks for at most d, or until a signal arrives if d is not positive.
type Display interface {
	Show(frame image.Image, corners []r2.Point, found bool)
	Wait(d time.Duration) Signal
	Close() error
}

// Default frame rate used to pace interactive sources.
const DefaultFPS = 30

// Option is a functional option for video and camera sources.
type Option func(*settings) error

type settings struct {
	fps         float64
	interactive bool
	detector    pattern.Detector
	display     Display
	autoDelay   time.Duration
	log         logging.Logger
	now         func() time.Time
}

func newSettings(opts []Option) (*settings, error) {
	s := &settings{
		fps:         DefaultFPS,
		interactive: true,
		log:         logging.New(logging.Fatal, io.Discard, true),
		now:         time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// period returns the time to wait for a signal between frames.
func (s *settings) period() time.Duration {
	return time.Duration(float64(time.Second) / s.fps)
}

// WithFPS sets the rate at which frames are presented to the operator.
func WithFPS(fps float64) Option {
	return func(s *settings) error {
		if !(fps > 0) {
			return fmt.Errorf("invalid frame rate: %v", fps)
		}
		s.fps = fps
		return nil
	}
}

// WithInteractive sets whether a video source waits for the operator.
func WithInteractive(b bool) Option {
	return func(s *settings) error {
		s.interactive = b
		return nil
	}
}

// WithDetector sets the detector used for previews and capture checks.
func WithDetector(d pattern.Detector) Option {
	return func(s *settings) error {
		s.detector = d
		return nil
	}
}

// WithDisplay sets the operator display.
func WithDisplay(d Display) Option {
	return func(s *settings) error {
		s.display = d
		return nil
	}
}

// WithAutoCapture makes a camera source arm capture by itself every delay.
func WithAutoCapture(delay time.Duration) Option {
	return func(s *settings) error {
		if delay <= 0 {
			return fmt.Errorf("invalid capture delay: %v", delay)
		}
		s.autoDelay = delay
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) error {
		s.log = l
		return nil
	}
}
