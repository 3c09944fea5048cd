//go:build withcv
// +build withcv

/*
DESCRIPTION
  cv.go provides a Brown-Conrady calibration backend using OpenCV's
  calibrateCamera.

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

package solver

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
)

// SolveCV fits a Brown-Conrady model using OpenCV. Poses are estimated
// afterwards under the fitted intrinsics. Kannala-Brandt is not supported
// by this backend; use Solve.
func SolveCV(obs []pattern.Observation, d camera.Distortion, size image.Point) (*camera.Model, float64, error) {
	if len(obs) == 0 {
		return nil, 0, ErrNoObservations
	}
	if d != camera.BrownConrady {
		return nil, 0, errors.New("OpenCV backend only supports Brown-Conrady")
	}

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imgPoints := gocv.NewPoints2fVector()
	defer imgPoints.Close()

	for i, o := range obs {
		if err := o.Validate(); err != nil {
			return nil, 0, fmt.Errorf("invalid observation %d: %w", i, err)
		}
		p3fv := gocv.NewPoint3fVector()
		for _, p := range o.ObjectPoints {
			p3fv.Append(gocv.NewPoint3f(float32(p.X), float32(p.Y), float32(p.Z)))
		}
		objectPoints.Append(p3fv)
		p3fv.Close()

		pts := make([]gocv.Point2f, o.Len())
		for j, p := range o.ImagePoints {
			pts[j] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
		}
		p2fv := gocv.NewPoint2fVectorFromPoints(pts)
		imgPoints.Append(p2fv)
		p2fv.Close()
	}

	mtx := gocv.NewMat()
	defer mtx.Close()
	dist := gocv.NewMat()
	defer dist.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objectPoints, imgPoints, size, &mtx, &dist, &rvecs, &tvecs, 0)
	if math.IsNaN(rms) || math.IsInf(rms, 0) || mtx.Empty() || dist.Empty() {
		return nil, 0, fmt.Errorf("%w: OpenCV calibration failed", ErrDiverged)
	}

	m := camera.NewModel(camera.BrownConrady)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.K.Set(i, j, mtx.GetDoubleAt(i, j))
		}
	}
	for i := range m.Coeffs {
		m.Coeffs[i] = dist.GetDoubleAt(0, i)
	}
	if m.Fx() <= 0 || m.Fy() <= 0 {
		return nil, 0, fmt.Errorf("%w: non-positive focal length", ErrDiverged)
	}

	poses, err := EstimatePoses(m, obs)
	if err != nil {
		return nil, 0, err
	}
	m.Poses = poses
	m.Calibrated = true
	return m, rms, nil
}
