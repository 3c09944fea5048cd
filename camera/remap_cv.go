//go:build withcv
// +build withcv

/*
DESCRIPTION
  remap_cv.go provides undistortion of OpenCV mats using the model's
  undistortion maps.

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

package camera

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Mats returns the map as a pair of CV_32FC1 mats suitable for gocv.Remap.
// The caller must close both.
func (mp *Map) Mats() (gocv.Mat, gocv.Mat) {
	mx := gocv.NewMatWithSize(mp.Size.Y, mp.Size.X, gocv.MatTypeCV32FC1)
	my := gocv.NewMatWithSize(mp.Size.Y, mp.Size.X, gocv.MatTypeCV32FC1)
	for v := 0; v < mp.Size.Y; v++ {
		for u := 0; u < mp.Size.X; u++ {
			x, y := mp.At(u, v)
			if x != x || y != y {
				x, y = -1, -1 // NaN, map outside the image.
			}
			mx.SetFloatAt(v, u, x)
			my.SetFloatAt(v, u, y)
		}
	}
	return mx, my
}

// UndistortMat undistorts a mat, returning a new mat the caller must close.
// An uncalibrated model returns a clone of src.
func (m *Model) UndistortMat(src gocv.Mat) gocv.Mat {
	if !m.Calibrated || src.Empty() {
		return src.Clone()
	}
	mx, my := m.Map(image.Pt(src.Cols(), src.Rows())).Mats()
	defer mx.Close()
	defer my.Close()

	dst := gocv.NewMat()
	gocv.Remap(src, &dst, &mx, &my, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return dst
}
