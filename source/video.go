/*
DESCRIPTION
  video.go provides a Source that reads frames from a video, optionally
  letting an operator pick which frames to use.

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
	"fmt"
	"io"
)

// VideoSource provides frames from a Grabber.
//
// When interactive, each frame is shown for one frame period. A Trigger
// detects the pattern in the current frame and shows the result, which the
// operator then keeps with Confirm or discards with any other signal. Abort
// ends acquisition with the frames kept so far. When not interactive every
// frame is accepted undetected.
type VideoSource struct {
	*settings
	g    Grabber
	n    int
	done bool
}

// NewVideo returns a VideoSource reading from g. Interactive sources need
// a display and a detector.
func NewVideo(g Grabber, opts ...Option) (*VideoSource, error) {
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	if s.interactive && (s.display == nil || s.detector == nil) {
		return nil, errors.New("interactive video needs a display and a detector")
	}
	return &VideoSource{settings: s, g: g}, nil
}

// Next implements Source.
func (v *VideoSource) Next() (*Capture, error) {
	for !v.done {
		img, err := v.g.Grab()
		if errors.Is(err, io.EOF) {
			v.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not grab frame: %w", err)
		}
		v.n++
		name := fmt.Sprintf("frame-%05d", v.n)

		if !v.interactive {
			return &Capture{Frame: img, Name: name}, nil
		}

		v.display.Show(img, nil, false)
		switch v.display.Wait(v.period()) {
		case Abort:
			v.log.Info("video acquisition ended by operator", "frame", v.n)
			v.done = true
		case Trigger:
			corners, found := v.detector.Detect(img)
			v.display.Show(img, corners, found)
			switch sig := v.display.Wait(0); sig {
			case Confirm:
				v.log.Info("frame accepted", "frame", v.n, "found", found)
				return &Capture{Frame: img, Name: name, Corners: corners, Found: found, Detected: true}, nil
			case Abort:
				v.log.Info("video acquisition ended by operator", "frame", v.n)
				v.done = true
			default:
				v.log.Debug("frame rejected", "frame", v.n, "signal", sig.String())
			}
		}
	}
	return nil, io.EOF
}

// Close implements Source.
func (v *VideoSource) Close() error {
	if v.display != nil {
		v.display.Close()
	}
	return v.g.Close()
}
