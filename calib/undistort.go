/*
DESCRIPTION
  undistort.go provides undistortion of a folder of images with a stored
  camera model.

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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ausocean/utils/logging"
	"github.com/disintegration/imaging"

	"github.com/ausocean/camcal/source"
	"github.com/ausocean/camcal/store"
)

// UndistortFolder loads the model at modelPath and writes an undistorted
// copy of every image in dir to out, under the same names. It returns the
// number of images written.
func UndistortFolder(modelPath, dir, out string, log logging.Logger) (int, error) {
	m, err := store.Load(modelPath)
	if err != nil {
		return 0, fmt.Errorf("could not load model: %w", err)
	}
	log.Info("loaded camera model", "path", modelPath, "model", m.Distortion.String(), "fx", m.Fx(), "fy", m.Fy())

	src, err := source.NewFolder(dir, log)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if err := os.MkdirAll(out, 0755); err != nil {
		return 0, fmt.Errorf("could not create output directory: %w", err)
	}

	var n int
	for {
		c, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		img, err := undistortImage(m, c.Frame)
		if err != nil {
			return n, fmt.Errorf("could not undistort %s: %w", c.Name, err)
		}
		path := filepath.Join(out, c.Name)
		if err := imaging.Save(img, path); err != nil {
			return n, fmt.Errorf("could not save %s: %w", c.Name, err)
		}
		log.Debug("undistorted image", "name", c.Name)
		n++
	}
	log.Info("undistorted folder", "images", n, "out", out)
	return n, nil
}
