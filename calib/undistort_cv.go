//go:build withcv
// +build withcv

/*
DESCRIPTION
  undistort_cv.go undistorts images with OpenCV's remap.

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

package calib

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ausocean/camcal/camera"
)

func undistortImage(m *camera.Model, img image.Image) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("could not convert image to mat: %w", err)
	}
	defer src.Close()
	dst := m.UndistortMat(src)
	defer dst.Close()
	return dst.ToImage()
}
