/*
DESCRIPTION
  init.go provides the initial intrinsic and pose estimates the solver starts
  from.

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

package solver

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
)

// initialise sets the starting intrinsics and poses.
func (p *problem) initialise(size image.Point) error {
	cx, cy := float64(size.X-1)/2, float64(size.Y-1)/2

	switch {
	case p.s.guess != nil:
		g := p.s.guess
		p.intr = append([]float64{g.Fx(), g.Fy(), g.Cx(), g.Cy()}, g.Coeffs...)
	case p.dist == camera.KannalaBrandt:
		f := math.Max(float64(size.X), float64(size.Y)) / math.Pi
		p.intr = []float64{f, f, cx, cy, 0, 0, 0, 0}
	default:
		fx, fy, err := focalFromHomographies(p.obs, cx, cy)
		if err != nil {
			return err
		}
		p.intr = []float64{fx, fy, cx, cy, 0, 0, 0, 0, 0}
	}

	for i, o := range p.obs {
		pose, err := p.initPose(p.intr, o)
		if err != nil {
			return fmt.Errorf("could not initialise pose for view %d: %w", i, err)
		}
		p.poses[i] = pose
	}
	return nil
}

// focalFromHomographies estimates focal lengths from the orthogonality of
// rotation columns in each view's homography, with the principal point fixed
// at (cx, cy). The two constraints per view are solved in the least squares
// sense for 1/fx^2 and 1/fy^2.
func focalFromHomographies(obs []pattern.Observation, cx, cy float64) (float64, float64, error) {
	a := mat.NewDense(2*len(obs), 2, nil)
	b := mat.NewVecDense(2*len(obs), nil)
	centre := mat.NewDense(3, 3, []float64{1, 0, -cx, 0, 1, -cy, 0, 0, 1})

	for i, o := range obs {
		h, err := homography(planar(o.ObjectPoints), o.ImagePoints)
		if err != nil {
			return 0, 0, fmt.Errorf("could not estimate homography for view %d: %w", i, err)
		}
		var hc mat.Dense
		hc.Mul(centre, h)

		var hv, vv, d1, d2 [3]float64
		for j := 0; j < 3; j++ {
			t0, t1 := hc.At(j, 0), hc.At(j, 1)
			hv[j], vv[j] = t0, t1
			d1[j], d2[j] = (t0+t1)/2, (t0-t1)/2
		}
		for _, v := range []*[3]float64{&hv, &vv, &d1, &d2} {
			n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
			for j := range v {
				v[j] /= n
			}
		}

		a.SetRow(2*i, []float64{hv[0] * vv[0], hv[1] * vv[1]})
		b.SetVec(2*i, -hv[2]*vv[2])
		a.SetRow(2*i+1, []float64{d1[0] * d2[0], d1[1] * d2[1]})
		b.SetVec(2*i+1, -d1[2]*d2[2])
	}

	f := mat.NewVecDense(2, nil)
	qr := new(mat.QR)
	qr.Factorize(a)
	if err := qr.SolveVecTo(f, false, b); err != nil {
		return 0, 0, fmt.Errorf("could not solve focal length system: %w", err)
	}

	fx, fy := math.Sqrt(math.Abs(1/f.AtVec(0))), math.Sqrt(math.Abs(1/f.AtVec(1)))
	if math.IsNaN(fx) || math.IsInf(fx, 0) || math.IsNaN(fy) || math.IsInf(fy, 0) || fx == 0 || fy == 0 {
		return 0, 0, fmt.Errorf("%w: could not estimate focal length from views", ErrDiverged)
	}
	return fx, fy, nil
}

// initPose estimates the pose of one view from the homography between the
// pattern plane and the ideal normalised image points, then refines it.
func (p *problem) initPose(intr []float64, o pattern.Observation) ([6]float64, error) {
	m := p.modelFor(intr)
	var src, dst []r2.Point
	for i, ip := range o.ImagePoints {
		n := m.UndistortPoint(ip)
		if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsInf(n.X, 0) || math.IsInf(n.Y, 0) {
			continue
		}
		src = append(src, r2.Point{X: o.ObjectPoints[i].X, Y: o.ObjectPoints[i].Y})
		dst = append(dst, n)
	}

	h, err := homography(src, dst)
	if err != nil {
		return [6]float64{}, err
	}
	pose, err := poseFromHomography(h)
	if err != nil {
		return [6]float64{}, err
	}
	return p.refinePose(intr, o, toParams(pose))
}
