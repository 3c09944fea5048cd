/*
DESCRIPTION
  pattern.go provides the chessboard pattern geometry, the object points it
  derives and the observation type pairing detected corners with them.

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

// Package pattern describes planar chessboard calibration targets and the
// detection of their inner corners.
package pattern

import (
	"errors"
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Window and termination settings used for sub-pixel corner refinement.
const (
	SubPixWindow = 11
	SubPixIter   = 30
	SubPixEps    = 0.1
)

// ErrInvalidGeometry is returned for grids that cannot describe a chessboard.
var ErrInvalidGeometry = errors.New("invalid pattern geometry")

// Geometry is the inner corner grid of a chessboard and the physical
// spacing between corners.
type Geometry struct {
	Rows     int     // Inner corners per column.
	Cols     int     // Inner corners per row.
	CellSize float64 // Square side length, in the unit used for translations.
}

// Validate checks that the grid has at least 2x2 corners and a positive cell size.
func (g Geometry) Validate() error {
	if g.Rows < 2 || g.Cols < 2 {
		return fmt.Errorf("%w: need at least 2x2 corners, got %dx%d", ErrInvalidGeometry, g.Cols, g.Rows)
	}
	if !(g.CellSize > 0) {
		return fmt.Errorf("%w: cell size must be positive, got %v", ErrInvalidGeometry, g.CellSize)
	}
	return nil
}

// Size returns the number of inner corners.
func (g Geometry) Size() int { return g.Rows * g.Cols }

// PatternSize returns the grid as an image.Point of (cols, rows), the
// ordering corner finders expect.
func (g Geometry) PatternSize() image.Point { return image.Pt(g.Cols, g.Rows) }

// ObjectPoints returns the corner positions in the pattern's own plane,
// row-major, with z = 0. A new slice is returned on each call.
func (g Geometry) ObjectPoints() []r3.Vector {
	pts := make([]r3.Vector, 0, g.Size())
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			pts = append(pts, r3.Vector{X: float64(c) * g.CellSize, Y: float64(r) * g.CellSize})
		}
	}
	return pts
}

// Observation pairs the detected image corners of one accepted frame with
// the object points they correspond to, index for index.
type Observation struct {
	ImagePoints  []r2.Point
	ObjectPoints []r3.Vector
}

// Len returns the number of point correspondences.
func (o Observation) Len() int { return len(o.ImagePoints) }

// Validate checks the correspondence invariant.
func (o Observation) Validate() error {
	if len(o.ImagePoints) == 0 {
		return errors.New("observation has no points")
	}
	if len(o.ImagePoints) != len(o.ObjectPoints) {
		return fmt.Errorf("observation has %d image points but %d object points", len(o.ImagePoints), len(o.ObjectPoints))
	}
	return nil
}

// Observe builds an Observation from detected corners, which must number
// exactly Rows*Cols.
func (g Geometry) Observe(corners []r2.Point) (Observation, error) {
	if len(corners) != g.Size() {
		return Observation{}, fmt.Errorf("expected %d corners, got %d", g.Size(), len(corners))
	}
	img := make([]r2.Point, len(corners))
	copy(img, corners)
	return Observation{ImagePoints: img, ObjectPoints: g.ObjectPoints()}, nil
}

// Detector finds the inner corners of a chessboard in an image. On success
// the corners are in row-major grid order. Failure is reported by found
// being false, never by panicking.
type Detector interface {
	Detect(img image.Image) (corners []r2.Point, found bool)
}
