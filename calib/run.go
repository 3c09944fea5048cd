/*
DESCRIPTION
  run.go provides the calibration pipeline: frame acquisition, pattern
  detection, solving, reporting and saving of the camera model.

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

// Package calib runs camera calibrations from chessboard images.
package calib

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
	"github.com/ausocean/camcal/present"
	"github.com/ausocean/camcal/solver"
	"github.com/ausocean/camcal/source"
	"github.com/ausocean/camcal/store"
)

// Errors returned by a Run.
var (
	ErrNoFrames            = errors.New("no frames acquired")
	ErrNoUsableData        = errors.New("no pattern found in any frame")
	ErrResourceUnavailable = source.ErrResourceUnavailable
)

// SolveFunc fits a camera model to observations; see solver.Solve.
type SolveFunc func(obs []pattern.Observation, d camera.Distortion, size image.Point) (*camera.Model, float64, error)

// Run holds the state of one calibration as it passes through acquisition,
// detection, solving and saving.
type Run struct {
	cfg   Config
	det   pattern.Detector
	solve SolveFunc
	log   logging.Logger

	Frames       []*source.Capture
	Size         image.Point
	Observations []pattern.Observation
	Used         []int // Index into Frames of each observation.
	Model        *camera.Model
	RMS          float64
	ViewErrors   []float64
}

// RunOption is a functional option for NewRun.
type RunOption func(*Run) error

// WithSolver replaces the default pure Go solver.
func WithSolver(f SolveFunc) RunOption {
	return func(r *Run) error {
		if f == nil {
			return errors.New("nil solver")
		}
		r.solve = f
		return nil
	}
}

// NewRun returns a run for cfg. The detector is used on frames the source
// did not already detect, and may be nil if the source always detects.
func NewRun(cfg Config, det pattern.Detector, log logging.Logger, opts ...RunOption) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Run{cfg: cfg, det: det, log: log}
	solveOpts := []solver.Option{solver.WithLogger(log)}
	if cfg.Guess != "" {
		g, err := store.Load(cfg.Guess)
		if err != nil {
			return nil, fmt.Errorf("could not load intrinsic guess: %w", err)
		}
		if g.Distortion != cfg.Distortion {
			return nil, fmt.Errorf("%w: guess is a %s model, want %s", ErrInvalidConfig, g.Distortion, cfg.Distortion)
		}
		log.Info("starting from intrinsic guess", "path", cfg.Guess, "fx", g.Fx(), "fy", g.Fy())
		solveOpts = append(solveOpts, solver.WithIntrinsicGuess(g))
	}
	r.solve = func(obs []pattern.Observation, d camera.Distortion, size image.Point) (*camera.Model, float64, error) {
		return solver.Solve(obs, d, size, solveOpts...)
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Config returns the run's configuration.
func (r *Run) Config() Config { return r.cfg }

// Acquire pulls frames from src until it is exhausted or MaxImages frames
// have been accepted.
func (r *Run) Acquire(src source.Source) error {
	for len(r.Frames) < r.cfg.MaxImages {
		c, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("could not acquire frame: %w", err)
		}
		r.Frames = append(r.Frames, c)
		r.log.Debug("frame acquired", "name", c.Name, "count", len(r.Frames))
	}
	if len(r.Frames) == r.cfg.MaxImages {
		r.log.Info("maximum images reached", "max", r.cfg.MaxImages)
	}
	if len(r.Frames) == 0 {
		return ErrNoFrames
	}
	r.log.Info("acquisition complete", "frames", len(r.Frames))
	return nil
}

// Detect finds the pattern in every acquired frame not already detected
// and builds the observations. Frames differing in size from the first
// frame are dropped.
func (r *Run) Detect() error {
	if len(r.Frames) == 0 {
		return ErrNoFrames
	}
	r.Observations, r.Used = nil, nil
	r.Size = r.Frames[0].Frame.Bounds().Size()

	for i, c := range r.Frames {
		if size := c.Frame.Bounds().Size(); size != r.Size {
			r.log.Warning("dropping frame of different size", "name", c.Name, "size", size, "want", r.Size)
			continue
		}
		if !c.Detected {
			if r.det == nil {
				return errors.New("frame needs detection but no detector is set")
			}
			c.Corners, c.Found = r.det.Detect(c.Frame)
			c.Detected = true
		}
		if !c.Found {
			r.log.Debug("pattern not found", "name", c.Name)
			continue
		}
		o, err := r.cfg.Geometry.Observe(c.Corners)
		if err != nil {
			r.log.Warning("dropping frame with bad detection", "name", c.Name, "error", err)
			continue
		}
		r.Observations = append(r.Observations, o)
		r.Used = append(r.Used, i)
	}

	if len(r.Observations) == 0 {
		return ErrNoUsableData
	}
	if len(r.Observations) < r.cfg.MinImages {
		r.log.Warning("fewer observations than recommended", "have", len(r.Observations), "min", r.cfg.MinImages)
	}
	r.log.Info("detection complete", "observations", len(r.Observations), "frames", len(r.Frames))
	return nil
}

// Solve fits the camera model to the observations.
func (r *Run) Solve() error {
	m, rms, err := r.solve(r.Observations, r.cfg.Distortion, r.Size)
	if err != nil {
		return fmt.Errorf("could not calibrate: %w", err)
	}
	errs, err := solver.ViewErrors(m, r.Observations)
	if err != nil {
		return fmt.Errorf("could not compute view errors: %w", err)
	}
	r.Model, r.RMS, r.ViewErrors = m, rms, errs
	return nil
}

// Report logs the result and writes plots if a plot directory is set.
func (r *Run) Report() {
	present.Report(r.log, r.Model, r.RMS, r.ViewErrors)
	if r.cfg.PlotDir == "" {
		return
	}
	for _, plot := range []func() (string, error){
		func() (string, error) { return present.PlotErrors(r.cfg.PlotDir, r.ViewErrors) },
		func() (string, error) { return present.PlotDistortion(r.cfg.PlotDir, r.Model, r.Size) },
	} {
		path, err := plot()
		if err != nil {
			r.log.Warning("could not write plot", "error", err)
			continue
		}
		r.log.Info("wrote plot", "path", path)
	}
}

// Save writes the model to the configured output path.
func (r *Run) Save() error {
	if err := store.Save(r.Model, r.cfg.Output); err != nil {
		return fmt.Errorf("could not save model: %w", err)
	}
	r.log.Info("saved camera model", "path", r.cfg.Output)
	return nil
}

// Show presents every acquired frame beside its undistorted version,
// including frames in which no pattern was found.
func (r *Run) Show(d source.Display) {
	frames := make([]image.Image, len(r.Frames))
	for i, c := range r.Frames {
		frames[i] = c.Frame
	}
	n := present.Show(d, r.Model, frames)
	r.log.Debug("results shown", "frames", n)
}

// Execute runs the whole pipeline from src. Results are shown on d if
// ShowResult is set and d is not nil.
func (r *Run) Execute(src source.Source, d source.Display) error {
	r.log.Info("starting calibration", "mode", r.cfg.Mode.String(), "model", r.cfg.Distortion.String(),
		"cols", r.cfg.Geometry.Cols, "rows", r.cfg.Geometry.Rows, "cellSize", r.cfg.Geometry.CellSize)
	if err := r.Acquire(src); err != nil {
		return err
	}
	if err := r.Detect(); err != nil {
		return err
	}
	if err := r.Solve(); err != nil {
		return err
	}
	r.Report()
	if err := r.Save(); err != nil {
		return err
	}
	if r.cfg.ShowResult && d != nil {
		r.Show(d)
	}
	return nil
}
