//go:build withcv
// +build withcv

/*
DESCRIPTION
  detect.go provides a chessboard corner detector based on OpenCV corner
  finding followed by sub-pixel refinement.

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

package pattern

import (
	"image"

	"github.com/ausocean/utils/logging"
	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// CVDetector detects chessboard corners using OpenCV.
type CVDetector struct {
	geom Geometry
	log  logging.Logger
}

// NewCVDetector returns a new CVDetector for the given grid.
func NewCVDetector(g Geometry, log logging.Logger) *CVDetector {
	return &CVDetector{geom: g, log: log}
}

// Detect implements Detector.
func (d *CVDetector) Detect(img image.Image) ([]r2.Point, bool) {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		d.log.Warning("could not convert image to mat", "error", err)
		return nil, false
	}
	defer m.Close()
	return d.DetectMat(m)
}

// DetectMat runs detection directly on a BGR or greyscale mat.
func (d *CVDetector) DetectMat(m gocv.Mat) ([]r2.Point, bool) {
	if m.Empty() {
		return nil, false
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if m.Channels() == 1 {
		m.CopyTo(&gray)
	} else {
		gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	}

	corners := gocv.NewMat()
	defer corners.Close()
	if !gocv.FindChessboardCorners(gray, d.geom.PatternSize(), &corners, gocv.CalibCBAdaptiveThresh+gocv.CalibCBNormalizeImage) {
		return nil, false
	}

	// Refine to sub-pixel accuracy.
	criteria := gocv.NewTermCriteria(gocv.MaxIter+gocv.EPS, SubPixIter, SubPixEps)
	gocv.CornerSubPix(gray, &corners, image.Pt(SubPixWindow, SubPixWindow), image.Pt(-1, -1), criteria)

	pv := gocv.NewPoint2fVectorFromMat(corners)
	defer pv.Close()
	raw := pv.ToPoints()
	if len(raw) != d.geom.Size() {
		d.log.Debug("unexpected corner count", "got", len(raw), "want", d.geom.Size())
		return nil, false
	}

	pts := make([]r2.Point, len(raw))
	for i, p := range raw {
		pts[i] = r2.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return pts, true
}

// Draw draws the detected corners onto m, in the style of OpenCV's
// chessboard corner rendering.
func (d *CVDetector) Draw(m *gocv.Mat, corners []r2.Point, found bool) {
	if len(corners) == 0 {
		return
	}
	cm := gocv.NewMatWithSize(len(corners), 1, gocv.MatTypeCV32FC2)
	defer cm.Close()
	for i, p := range corners {
		cm.SetFloatAt(i, 0, float32(p.X))
		cm.SetFloatAt(i, 1, float32(p.Y))
	}
	gocv.DrawChessboardCorners(m, d.geom.PatternSize(), cm, found)
}
