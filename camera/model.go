/*
DESCRIPTION
  model.go provides the camera model, holding the intrinsic matrix, lens
  distortion coefficients and per-view poses produced by calibration.

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

// Package camera provides a pinhole camera model with Brown-Conrady or
// Kannala-Brandt lens distortion, projection of pattern points and
// undistortion of images.
package camera

import (
	"fmt"
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Model is a calibrated or uncalibrated camera.
//
// K and Coeffs may be modified directly; undistortion maps are rebuilt
// whenever they no longer match.
type Model struct {
	K          *mat.Dense // 3x3 intrinsic matrix.
	Coeffs     []float64  // Distortion.NumCoeffs() coefficients.
	Distortion Distortion
	Poses      []Pose // One per calibration view; empty for loaded models.
	Calibrated bool

	mu    sync.Mutex
	cache map[image.Point]*Map
}

// NewModel returns an uncalibrated model with an identity intrinsic matrix
// and zero coefficients.
func NewModel(d Distortion) *Model {
	return &Model{
		K:          mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}),
		Coeffs:     make([]float64, d.NumCoeffs()),
		Distortion: d,
	}
}

// NewIntrinsics returns a zero skew intrinsic matrix.
func NewIntrinsics(fx, fy, cx, cy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{fx, 0, cx, 0, fy, cy, 0, 0, 1})
}

// Fx returns the horizontal focal length in pixels.
func (m *Model) Fx() float64 { return m.K.At(0, 0) }

// Fy returns the vertical focal length in pixels.
func (m *Model) Fy() float64 { return m.K.At(1, 1) }

// Cx returns the horizontal principal point.
func (m *Model) Cx() float64 { return m.K.At(0, 2) }

// Cy returns the vertical principal point.
func (m *Model) Cy() float64 { return m.K.At(1, 2) }

// Validate checks the model's shape is consistent with its distortion model.
func (m *Model) Validate() error {
	if !m.Distortion.Valid() {
		return fmt.Errorf("invalid distortion model: %v", m.Distortion)
	}
	if m.K == nil {
		return fmt.Errorf("missing intrinsic matrix")
	}
	if r, c := m.K.Dims(); r != 3 || c != 3 {
		return fmt.Errorf("intrinsic matrix is %dx%d, want 3x3", r, c)
	}
	if len(m.Coeffs) != m.Distortion.NumCoeffs() {
		return fmt.Errorf("%v model needs %d coefficients, got %d", m.Distortion, m.Distortion.NumCoeffs(), len(m.Coeffs))
	}
	return nil
}

// Project projects a point in camera coordinates to pixel coordinates.
// The point must lie in front of the camera.
func (m *Model) Project(p r3.Vector) r2.Point {
	return projectK(m.K, m.Distortion, m.Coeffs, p)
}

// ProjectPattern projects pattern points placed at the given pose.
func (m *Model) ProjectPattern(pts []r3.Vector, pose Pose) []r2.Point {
	rot := Rodrigues(pose.Rvec)
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = m.Project(rot.Apply(p).Add(pose.Tvec))
	}
	return out
}

// UndistortPoint maps a distorted pixel to its ideal normalised coordinates.
func (m *Model) UndistortPoint(p r2.Point) r2.Point {
	fx, fy, cx, cy, skew := intrinsics(m.K)
	y := (p.Y - cy) / fy
	x := (p.X - cx - skew*y) / fx
	x, y = m.Distortion.Undistort(x, y, m.Coeffs)
	return r2.Point{X: x, Y: y}
}

// Clone returns a deep copy of m without its map cache.
func (m *Model) Clone() *Model {
	c := &Model{
		K:          mat.DenseCopyOf(m.K),
		Coeffs:     append([]float64(nil), m.Coeffs...),
		Distortion: m.Distortion,
		Poses:      append([]Pose(nil), m.Poses...),
		Calibrated: m.Calibrated,
	}
	return c
}

func intrinsics(k mat.Matrix) (fx, fy, cx, cy, skew float64) {
	return k.At(0, 0), k.At(1, 1), k.At(0, 2), k.At(1, 2), k.At(0, 1)
}

func projectK(k mat.Matrix, d Distortion, coeffs []float64, p r3.Vector) r2.Point {
	fx, fy, cx, cy, skew := intrinsics(k)
	x, y := d.Distort(p.X/p.Z, p.Y/p.Z, coeffs)
	return r2.Point{X: fx*x + skew*y + cx, Y: fy*y + cy}
}
