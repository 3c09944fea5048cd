/*
DESCRIPTION
  camera.go provides a Source that captures frames from a live camera on
  operator command.

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
	"time"
)

// CameraSource provides frames from a live Grabber.
//
// Every frame is detected and shown. Trigger arms capture, and the next
// frame read is accepted if the pattern is found in it; otherwise capture
// is disarmed. Confirm finishes once at least one frame is accepted. Abort
// finishes, or fails with ErrAborted if nothing was accepted.
type CameraSource struct {
	*settings
	g        Grabber
	armed    bool
	accepted int
	lastAuto time.Time
	end      error
}

// NewCamera returns a CameraSource reading from g. A display and a
// detector are required.
func NewCamera(g Grabber, opts ...Option) (*CameraSource, error) {
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	if s.display == nil || s.detector == nil {
		return nil, errors.New("camera source needs a display and a detector")
	}
	return &CameraSource{settings: s, g: g, lastAuto: s.now()}, nil
}

// Accepted returns the number of frames accepted so far.
func (c *CameraSource) Accepted() int { return c.accepted }

// Next implements Source.
func (c *CameraSource) Next() (*Capture, error) {
	for c.end == nil {
		img, err := c.g.Grab()
		if errors.Is(err, io.EOF) {
			c.log.Info("camera stream ended", "accepted", c.accepted)
			c.end = io.EOF
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not grab frame: %w", err)
		}

		corners, found := c.detector.Detect(img)
		c.display.Show(img, corners, found)

		var capture *Capture
		if c.armed {
			c.armed = false
			if found {
				c.accepted++
				capture = &Capture{
					Frame:    img,
					Name:     fmt.Sprintf("capture-%03d", c.accepted),
					Corners:  corners,
					Found:    true,
					Detected: true,
				}
				c.log.Info("frame captured", "accepted", c.accepted)
			} else {
				c.log.Info("no pattern in captured frame, try again")
			}
		}

		if c.autoDelay > 0 && c.now().Sub(c.lastAuto) >= c.autoDelay {
			c.lastAuto = c.now()
			c.armed = true
		}

		switch c.display.Wait(c.period()) {
		case Trigger:
			c.armed = true
		case Confirm:
			if c.accepted == 0 {
				c.log.Info("nothing captured yet, ignoring confirm")
				break
			}
			c.end = io.EOF
		case Abort:
			if c.accepted == 0 {
				c.end = ErrAborted
				break
			}
			c.end = io.EOF
		}

		if capture != nil {
			return capture, nil
		}
	}
	return nil, c.end
}

// Close implements Source.
func (c *CameraSource) Close() error {
	c.display.Close()
	return c.g.Close()
}
