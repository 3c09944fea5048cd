/*
DESCRIPTION
  homography.go provides estimation of plane to image homographies using the
  normalised direct linear transform, and decomposition of a homography into
  a pattern pose.

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
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/camcal/camera"
)

// similarity returns the transform moving pts to their centroid with a mean
// distance of sqrt(2) from the origin.
func similarity(pts []r2.Point) *mat.Dense {
	var c r2.Point
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(pts)))

	var d float64
	for _, p := range pts {
		d += p.Sub(c).Norm()
	}
	d /= float64(len(pts))
	s := 1.0
	if d > 0 {
		s = math.Sqrt2 / d
	}
	return mat.NewDense(3, 3, []float64{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1})
}

func apply(t mat.Matrix, p r2.Point) r2.Point {
	w := t.At(2, 0)*p.X + t.At(2, 1)*p.Y + t.At(2, 2)
	return r2.Point{
		X: (t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2)) / w,
		Y: (t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2)) / w,
	}
}

// homography estimates H with dst ~ H * src from at least 4 correspondences.
func homography(src, dst []r2.Point) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, fmt.Errorf("mismatched point counts %d and %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.New("need at least 4 points for a homography")
	}

	ts, td := similarity(src), similarity(dst)
	a := mat.NewDense(2*len(src), 9, nil)
	for i := range src {
		s, d := apply(ts, src[i]), apply(td, dst[i])
		a.SetRow(2*i, []float64{s.X, s.Y, 1, 0, 0, 0, -d.X * s.X, -d.X * s.Y, -d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, s.X, s.Y, 1, -d.Y * s.X, -d.Y * s.Y, -d.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("could not factorise homography system")
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, mat.Col(nil, 8, &v))

	// Undo normalisation, H = td^-1 * hn * ts.
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return nil, fmt.Errorf("could not invert normalisation: %w", err)
	}
	var h mat.Dense
	h.Product(&tdInv, hn, ts)
	if s := h.At(2, 2); s != 0 {
		h.Scale(1/s, &h)
	}
	return &h, nil
}

// planar returns the x and y components of pattern points, which lie on z = 0.
func planar(pts []r3.Vector) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: p.X, Y: p.Y}
	}
	return out
}

// poseFromHomography decomposes a homography from pattern plane to ideal
// normalised image coordinates into a pose with the pattern in front of the
// camera.
func poseFromHomography(h mat.Matrix) (camera.Pose, error) {
	col := func(j int) r3.Vector { return r3.Vector{X: h.At(0, j), Y: h.At(1, j), Z: h.At(2, j)} }
	h1, h2, h3 := col(0), col(1), col(2)

	n := (h1.Norm() + h2.Norm()) / 2
	if n == 0 || math.IsNaN(n) {
		return camera.Pose{}, errors.New("degenerate homography")
	}
	lambda := 1 / n
	if h3.Z < 0 {
		lambda = -lambda
	}
	r1, r2v, t := h1.Mul(lambda), h2.Mul(lambda), h3.Mul(lambda)
	r3v := r1.Cross(r2v)

	// Nearest rotation in the Frobenius sense.
	q := mat.NewDense(3, 3, []float64{
		r1.X, r2v.X, r3v.X,
		r1.Y, r2v.Y, r3v.Y,
		r1.Z, r2v.Z, r3v.Z,
	})
	var svd mat.SVD
	if !svd.Factorize(q, mat.SVDFull) {
		return camera.Pose{}, errors.New("could not orthonormalise rotation")
	}
	var u, v, rm mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rm.Mul(&u, v.T())
	if mat.Det(&rm) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		rm.Mul(&u, v.T())
	}

	var rot camera.Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot[i][j] = rm.At(i, j)
		}
	}
	return camera.Pose{Rvec: rot.Vector(), Tvec: t}, nil
}
