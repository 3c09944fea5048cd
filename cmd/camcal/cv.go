//go:build withcv
// +build withcv

/*
DESCRIPTION
  cv.go provides the OpenCV backed detector, sources, display and solver
  used by camcal.

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
	"fmt"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/camcal/calib"
	"github.com/ausocean/camcal/pattern"
	"github.com/ausocean/camcal/solver"
	"github.com/ausocean/camcal/source"
)

const windowTitle = "camcal"

func newDetector(g pattern.Geometry, log logging.Logger) (pattern.Detector, error) {
	return pattern.NewCVDetector(g, log), nil
}

func newDisplay(cfg calib.Config, log logging.Logger) (source.Display, error) {
	return source.NewWindow(windowTitle, cfg.Geometry, log), nil
}

func cvSolver() (calib.SolveFunc, error) {
	return solver.SolveCV, nil
}

// openSource opens the input described by cfg. The display, if any, is
// owned by the source and closed with it.
func openSource(cfg calib.Config, det pattern.Detector, log logging.Logger) (source.Source, source.Display, error) {
	switch cfg.Mode {
	case calib.ModeImage:
		src, err := source.NewFolder(cfg.Input, log)
		return src, nil, err

	case calib.ModeVideo:
		g, err := source.OpenVideo(cfg.Input, log)
		if err != nil {
			return nil, nil, err
		}
		opts := []source.Option{
			source.WithFPS(cfg.FPS),
			source.WithInteractive(cfg.Interactive),
			source.WithLogger(log),
		}
		var disp source.Display
		if cfg.Interactive {
			disp = source.NewWindow(windowTitle, cfg.Geometry, log)
			opts = append(opts, source.WithDisplay(disp), source.WithDetector(det))
			log.Info("space to capture, enter to keep, esc to finish")
		}
		src, err := source.NewVideo(g, opts...)
		if err != nil {
			g.Close()
			return nil, nil, err
		}
		return src, disp, nil

	case calib.ModeCamera:
		id, err := cfg.DeviceIndex()
		if err != nil {
			return nil, nil, err
		}
		g, err := source.OpenDevice(id, cfg.CameraWidth, cfg.CameraHeight, cfg.FPS, log)
		if err != nil {
			return nil, nil, err
		}
		disp := source.NewWindow(windowTitle, cfg.Geometry, log)
		opts := []source.Option{
			source.WithFPS(cfg.FPS),
			source.WithDisplay(disp),
			source.WithDetector(det),
			source.WithLogger(log),
		}
		if cfg.AutoCapture {
			opts = append(opts, source.WithAutoCapture(cfg.CaptureDelay))
		}
		src, err := source.NewCamera(g, opts...)
		if err != nil {
			disp.Close()
			g.Close()
			return nil, nil, err
		}
		log.Info("space to capture, enter to finish, esc to abort")
		return src, disp, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown mode %v", calib.ErrInvalidConfig, cfg.Mode)
	}
}
