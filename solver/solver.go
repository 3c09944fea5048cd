/*
DESCRIPTION
  solver.go provides camera calibration from chessboard observations for
  Brown-Conrady and Kannala-Brandt lens models.

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

// Package solver fits camera models to chessboard observations by
// minimising reprojection error with Levenberg-Marquardt.
package solver

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/floats"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
)

// Errors returned by Solve.
var (
	ErrNoObservations = errors.New("no observations to calibrate from")
	ErrDiverged       = errors.New("calibration diverged")
	ErrIllConditioned = errors.New("ill-conditioned calibration view")
)

// Termination and conditioning defaults.
const (
	DefaultMaxIter = 30
	bcEpsilon      = 1e-12
	kbEpsilon      = 1e-6
	condThreshold  = 1e6
)

// Option is a functional option for Solve.
type Option func(*settings) error

type settings struct {
	maxIter int
	eps     float64
	guess   *camera.Model
	log     logging.Logger
}

// WithMaxIter sets the maximum number of solver iterations.
func WithMaxIter(n int) Option {
	return func(s *settings) error {
		if n <= 0 {
			return fmt.Errorf("invalid iteration count: %d", n)
		}
		s.maxIter = n
		return nil
	}
}

// WithEpsilon sets the relative intrinsic change below which the solver stops.
func WithEpsilon(eps float64) Option {
	return func(s *settings) error {
		if !(eps > 0) {
			return fmt.Errorf("invalid epsilon: %v", eps)
		}
		s.eps = eps
		return nil
	}
}

// WithIntrinsicGuess starts the solve from the intrinsics and coefficients
// of m instead of the closed form estimate. m is copied.
func WithIntrinsicGuess(m *camera.Model) Option {
	return func(s *settings) error {
		if m == nil {
			return errors.New("nil intrinsic guess")
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid intrinsic guess: %w", err)
		}
		s.guess = m.Clone()
		return nil
	}
}

// WithLogger sets the logger used to report progress.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) error {
		s.log = l
		return nil
	}
}

// Solve fits a camera model of distortion d to the observations of images
// of the given size. It returns the calibrated model, with one pose per
// observation, and the RMS reprojection error in pixels.
//
// Brown-Conrady models are solved jointly for intrinsics, coefficients and
// poses. Kannala-Brandt models recompute the poses after every intrinsic
// update and fail with ErrIllConditioned if any view's pose cannot be
// determined reliably. Skew is fixed at zero for both.
func Solve(obs []pattern.Observation, d camera.Distortion, size image.Point, opts ...Option) (*camera.Model, float64, error) {
	if len(obs) == 0 {
		return nil, 0, ErrNoObservations
	}
	if !d.Valid() {
		return nil, 0, fmt.Errorf("invalid distortion model: %v", d)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, 0, fmt.Errorf("invalid image size: %v", size)
	}
	for i, o := range obs {
		if err := o.Validate(); err != nil {
			return nil, 0, fmt.Errorf("invalid observation %d: %w", i, err)
		}
		if o.Len() < 4 {
			return nil, 0, fmt.Errorf("observation %d has too few points: %d", i, o.Len())
		}
	}

	s := settings{
		maxIter: DefaultMaxIter,
		eps:     bcEpsilon,
		log:     logging.New(logging.Fatal, io.Discard, true),
	}
	if d == camera.KannalaBrandt {
		s.eps = kbEpsilon
	}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, 0, err
		}
	}

	if s.guess != nil && s.guess.Distortion != d {
		return nil, 0, fmt.Errorf("intrinsic guess is a %v model, want %v", s.guess.Distortion, d)
	}

	p := newProblem(obs, d, &s)
	if err := p.initialise(size); err != nil {
		return nil, 0, err
	}
	s.log.Debug("initial estimate", "model", d.String(), "intrinsics", p.intr, "rms", p.rms())

	if err := p.optimise(); err != nil {
		return nil, 0, err
	}

	rms := p.rms()
	if err := p.check(rms); err != nil {
		return nil, 0, err
	}
	m := p.model()
	m.Calibrated = true
	return m, rms, nil
}

// ViewErrors returns the RMS reprojection error of each observation under
// m, which must hold one pose per observation.
func ViewErrors(m *camera.Model, obs []pattern.Observation) ([]float64, error) {
	if len(m.Poses) != len(obs) {
		return nil, fmt.Errorf("model has %d poses for %d observations", len(m.Poses), len(obs))
	}
	errs := make([]float64, len(obs))
	for i, o := range obs {
		proj := m.ProjectPattern(o.ObjectPoints, m.Poses[i])
		var sum float64
		for j, p := range proj {
			d := p.Sub(o.ImagePoints[j])
			sum += d.X*d.X + d.Y*d.Y
		}
		errs[i] = math.Sqrt(sum / float64(o.Len()))
	}
	return errs, nil
}

// check rejects numerically invalid solutions.
func (p *problem) check(rms float64) error {
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return fmt.Errorf("%w: non-finite reprojection error", ErrDiverged)
	}
	if floats.HasNaN(p.intr) {
		return fmt.Errorf("%w: non-finite intrinsics", ErrDiverged)
	}
	for _, v := range p.intr {
		if math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite intrinsics", ErrDiverged)
		}
	}
	if p.intr[0] <= 0 || p.intr[1] <= 0 {
		return fmt.Errorf("%w: non-positive focal length (%v, %v)", ErrDiverged, p.intr[0], p.intr[1])
	}
	return nil
}

// EstimatePoses estimates the pose of each observation under the fixed
// intrinsics and coefficients of m.
func EstimatePoses(m *camera.Model, obs []pattern.Observation) ([]camera.Pose, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s := settings{log: logging.New(logging.Fatal, io.Discard, true)}
	p := newProblem(obs, m.Distortion, &s)
	p.intr = append([]float64{m.Fx(), m.Fy(), m.Cx(), m.Cy()}, m.Coeffs...)

	poses := make([]camera.Pose, len(obs))
	for i, o := range obs {
		pose, err := p.initPose(p.intr, o)
		if err != nil {
			return nil, fmt.Errorf("could not estimate pose for view %d: %w", i, err)
		}
		poses[i] = toPose(pose)
	}
	return poses, nil
}
