/*
DESCRIPTION
  present.go provides presentation of calibration results: side by side
  undistortion previews and a logged summary of the fitted model.

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

// Package present shows and reports the results of a calibration.
package present

import (
	"image"
	"image/color"

	"github.com/ausocean/utils/logging"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/source"
)

// SideBySide returns orig and undist placed left to right on a black
// canvas tall enough for both.
func SideBySide(orig, undist image.Image) image.Image {
	a, b := orig.Bounds(), undist.Bounds()
	h := a.Dy()
	if b.Dy() > h {
		h = b.Dy()
	}
	out := imaging.New(a.Dx()+b.Dx(), h, color.NRGBA{A: 0xff})
	out = imaging.Paste(out, orig, image.Pt(0, 0))
	return imaging.Paste(out, undist, image.Pt(a.Dx(), 0))
}

// Show displays each frame beside its undistorted version, waiting for a
// signal after each. It stops early on Abort and returns the number of
// frames shown.
func Show(d source.Display, m *camera.Model, frames []image.Image) int {
	for i, f := range frames {
		d.Show(SideBySide(f, m.Undistort(f)), nil, false)
		if d.Wait(0) == source.Abort {
			return i + 1
		}
	}
	return len(frames)
}

// Report logs the fitted model and its per-view reprojection errors.
func Report(log logging.Logger, m *camera.Model, rms float64, viewErrs []float64) {
	log.Info("calibration complete",
		"model", m.Distortion.String(),
		"rms", rms,
		"fx", m.Fx(), "fy", m.Fy(),
		"cx", m.Cx(), "cy", m.Cy(),
		"coefficients", m.Coeffs,
	)
	if len(viewErrs) == 0 {
		return
	}
	worst := floats.MaxIdx(viewErrs)
	log.Info("per-view reprojection error",
		"views", len(viewErrs),
		"mean", stat.Mean(viewErrs, nil),
		"stddev", stat.StdDev(viewErrs, nil),
		"worst", worst,
		"worstError", viewErrs[worst],
	)
	for i, e := range viewErrs {
		log.Debug("view error", "view", i, "rms", e)
	}
}
