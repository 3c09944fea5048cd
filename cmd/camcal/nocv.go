//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  nocv.go provides stand-ins for the OpenCV features of camcal in builds
  without OpenCV. Only -undistort is available in such builds.

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

package main

import (
	"github.com/ausocean/utils/logging"

	"github.com/ausocean/camcal/calib"
	"github.com/ausocean/camcal/pattern"
	"github.com/ausocean/camcal/source"
)

func newDetector(pattern.Geometry, logging.Logger) (pattern.Detector, error) {
	return nil, errNoOpenCV
}

func newDisplay(calib.Config, logging.Logger) (source.Display, error) {
	return nil, errNoOpenCV
}

func cvSolver() (calib.SolveFunc, error) {
	return nil, errNoOpenCV
}

func openSource(calib.Config, pattern.Detector, logging.Logger) (source.Source, source.Display, error) {
	return nil, nil, errNoOpenCV
}
