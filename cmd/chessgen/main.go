/*
DESCRIPTION
  chessgen renders synthetic chessboard calibration images through a known
  camera model, and saves that model beside them, for trying camcal without
  a camera.

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

// chessgen renders synthetic chessboard datasets.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
	"github.com/ausocean/camcal/store"
	"github.com/ausocean/camcal/synth"
)

// Logging configuration.
const (
	logVerbosity = logging.Info
	logSuppress  = false
)

// Name of the ground truth model written with the images.
const truthFile = "truth.yml"

func main() {
	log := logging.New(logVerbosity, os.Stderr, logSuppress)
	if err := run(os.Args[1:], log); err != nil {
		log.Error("could not generate dataset", "error", err)
		os.Exit(1)
	}
}

func run(args []string, log logging.Logger) error {
	fs := flag.NewFlagSet("chessgen", flag.ContinueOnError)
	cols := fs.Int("w", 7, "Inner corners per chessboard row")
	rows := fs.Int("h", 6, "Inner corners per chessboard column")
	cell := fs.Float64("s", 24, "Chessboard square size (mm)")
	n := fs.Int("n", 15, "Number of views")
	model := fs.String("m", "bc", "Lens model: bc or kb")
	coeffs := fs.String("coeffs", "", "Comma separated distortion coefficients; zero if empty")
	width := fs.Int("width", 640, "Image width")
	height := fs.Int("height", 480, "Image height")
	focal := fs.Float64("focal", 800, "Focal length (px)")
	dist := fs.Float64("dist", 500, "Board distance (mm)")
	seed := fs.Int64("seed", 1, "Random seed for board poses")
	out := fs.String("o", "chessboards", "Output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g := pattern.Geometry{Rows: *rows, Cols: *cols, CellSize: *cell}
	if err := g.Validate(); err != nil {
		return err
	}
	if *n < 1 || *width < 1 || *height < 1 || !(*focal > 0) || !(*dist > 0) {
		return fmt.Errorf("invalid parameters: n=%d size=%dx%d focal=%v dist=%v", *n, *width, *height, *focal, *dist)
	}
	d, err := camera.ParseDistortion(*model)
	if err != nil {
		return err
	}

	m := camera.NewModel(d)
	m.K = camera.NewIntrinsics(*focal, *focal, float64(*width)/2, float64(*height)/2)
	if *coeffs != "" {
		m.Coeffs, err = parseCoeffs(*coeffs, d.NumCoeffs())
		if err != nil {
			return err
		}
	}
	m.Calibrated = true

	if err := os.MkdirAll(*out, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	size := image.Pt(*width, *height)
	poses := synth.Poses(g, *n, *dist, *seed)
	m.Poses = poses
	log.Info("rendering views", "views", *n, "model", d.String(), "size", size)
	paths, err := synth.Save(*out, synth.Dataset(m, g, poses, size))
	if err != nil {
		return err
	}
	if err := store.Save(m, filepath.Join(*out, truthFile)); err != nil {
		return fmt.Errorf("could not save ground truth: %w", err)
	}
	log.Info("wrote dataset", "images", len(paths), "dir", *out)
	return nil
}

// parseCoeffs parses want comma separated coefficients.
func parseCoeffs(s string, want int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("need %d coefficients, got %d", want, len(parts))
	}
	c := make([]float64, want)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coefficient %q: %w", p, err)
		}
		c[i] = v
	}
	return c, nil
}
