/*
DESCRIPTION
  plot.go provides plots of calibration quality and lens distortion.

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

package present

import (
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ausocean/camcal/camera"
)

// Plot file names.
const (
	ErrorPlot      = "reprojection-error"
	DistortionPlot = "distortion"
)

// Number of radii sampled for the distortion curve.
const curveSamples = 100

// PlotErrors writes a bar chart of per-view RMS reprojection errors, with
// their mean, to dir and returns the path written.
func PlotErrors(dir string, errs []float64) (string, error) {
	if len(errs) == 0 {
		return "", errors.New("no view errors to plot")
	}
	return plotToFile(dir, ErrorPlot, "View", "RMS error (px)", func(p *plot.Plot) error {
		bars, err := plotter.NewBarChart(plotter.Values(errs), vg.Points(8))
		if err != nil {
			return fmt.Errorf("could not create bar chart: %w", err)
		}
		p.Add(bars)

		mean := stat.Mean(errs, nil)
		x := []float64{-0.5, float64(len(errs)) - 0.5}
		l, err := plotter.NewLine(plotterXY(x, []float64{mean, mean}))
		if err != nil {
			return fmt.Errorf("could not create mean line: %w", err)
		}
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("mean %.3f", mean), l)
		return nil
	})
}

// PlotDistortion writes the radial pixel displacement caused by m's
// distortion, from the principal point to the furthest image corner, to
// dir and returns the path written.
func PlotDistortion(dir string, m *camera.Model, size image.Point) (string, error) {
	if !m.Calibrated {
		return "", errors.New("model is not calibrated")
	}
	radii, disp := distortionCurve(m, size)
	return plotToFile(dir, DistortionPlot, "Undistorted radius (px)", "Displacement (px)", func(p *plot.Plot) error {
		l, err := plotter.NewLine(plotterXY(radii, disp))
		if err != nil {
			return fmt.Errorf("could not create distortion curve: %w", err)
		}
		p.Add(l)
		return nil
	})
}

// distortionCurve samples the displacement along the horizontal through
// the principal point, where ideal radius r maps to a distorted radius.
// Samples that do not project are dropped.
func distortionCurve(m *camera.Model, size image.Point) (radii, disp []float64) {
	c := r2.Point{X: m.Cx(), Y: m.Cy()}
	var far float64
	for _, p := range []r2.Point{{}, {X: float64(size.X)}, {Y: float64(size.Y)}, {X: float64(size.X), Y: float64(size.Y)}} {
		far = math.Max(far, p.Sub(c).Norm())
	}

	for _, r := range floats.Span(make([]float64, curveSamples), 0, far) {
		x := r / m.Fx()
		got := m.Project(r3.Vector{X: x, Z: 1})
		d := got.X - m.Cx() - r
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		radii = append(radii, r)
		disp = append(disp, d)
	}
	return radii, disp
}

// plotToFile creates a plot titled name with the given axis titles using
// draw, and saves it to dir as name.png.
func plotToFile(dir, name, xTitle, yTitle string, draw func(*plot.Plot) error) (string, error) {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = xTitle
	p.Y.Label.Text = yTitle
	err := draw(p)
	if err != nil {
		return "", fmt.Errorf("could not draw plot contents: %w", err)
	}
	path := filepath.Join(dir, name+".png")
	if err := p.Save(15*vg.Centimeter, 15*vg.Centimeter, path); err != nil {
		return "", fmt.Errorf("could not save plot: %w", err)
	}
	return path, nil
}

// plotterXY provides a plotter.XYs type value based on the given x and y data.
func plotterXY(x, y []float64) plotter.XYs {
	xy := make(plotter.XYs, len(x))
	for i := range x {
		xy[i].X = x[i]
		xy[i].Y = y[i]
	}
	return xy
}
