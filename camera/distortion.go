/*
DESCRIPTION
  distortion.go provides the lens distortion models supported by camera
  models, Brown-Conrady for perspective lenses and Kannala-Brandt for fisheye
  lenses.

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

package camera

import (
	"fmt"
	"math"
	"strings"
)

// Distortion identifies a lens distortion model. Each value carries the
// behaviour of its model; see NumCoeffs, Distort and Undistort.
type Distortion int

// Supported distortion models.
const (
	BrownConrady  Distortion = iota // k1, k2, p1, p2, k3.
	KannalaBrandt                   // k1, k2, k3, k4.
)

// lens is the behaviour attached to each Distortion value.
type lens interface {
	name() string
	numCoeffs() int

	// distort maps ideal normalised coordinates to distorted normalised
	// coordinates.
	distort(x, y float64, k []float64) (float64, float64)

	// undistort is the inverse of distort.
	undistort(xd, yd float64, k []float64) (float64, float64)
}

var lenses = map[Distortion]lens{
	BrownConrady:  brownConrady{},
	KannalaBrandt: kannalaBrandt{},
}

func (d Distortion) lens() lens {
	l, ok := lenses[d]
	if !ok {
		panic(fmt.Sprintf("unknown distortion model: %d", int(d)))
	}
	return l
}

// Valid returns true if d is a known model.
func (d Distortion) Valid() bool {
	_, ok := lenses[d]
	return ok
}

// String returns the short name of the model, "bc" or "kb".
func (d Distortion) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Distortion(%d)", int(d))
	}
	return d.lens().name()
}

// NumCoeffs returns the number of coefficients the model uses.
func (d Distortion) NumCoeffs() int { return d.lens().numCoeffs() }

// Distort applies the model to ideal normalised coordinates (x, y) = (X/Z, Y/Z).
func (d Distortion) Distort(x, y float64, k []float64) (float64, float64) {
	return d.lens().distort(x, y, k)
}

// Undistort recovers ideal normalised coordinates from distorted ones.
func (d Distortion) Undistort(xd, yd float64, k []float64) (float64, float64) {
	return d.lens().undistort(xd, yd, k)
}

// ParseDistortion parses a model name. Both the short ("bc", "kb") and long
// ("brown-conrady", "kannala-brandt") forms are accepted.
func ParseDistortion(s string) (Distortion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bc", "brown-conrady", "brownconrady":
		return BrownConrady, nil
	case "kb", "kannala-brandt", "kannalabrandt", "fisheye":
		return KannalaBrandt, nil
	default:
		return 0, fmt.Errorf("unknown distortion model: %q", s)
	}
}

// DistortionFromCoeffs infers the model from a coefficient count.
func DistortionFromCoeffs(n int) (Distortion, error) {
	for d, l := range lenses {
		if l.numCoeffs() == n {
			return d, nil
		}
	}
	return 0, fmt.Errorf("no distortion model has %d coefficients", n)
}

const (
	undistortIter = 20
	undistortEps  = 1e-12
)

type brownConrady struct{}

func (brownConrady) name() string   { return "bc" }
func (brownConrady) numCoeffs() int { return 5 }

func (brownConrady) distort(x, y float64, k []float64) (float64, float64) {
	k1, k2, p1, p2, k3 := k[0], k[1], k[2], k[3], k[4]
	r2 := x*x + y*y
	radial := 1 + r2*(k1+r2*(k2+r2*k3))
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}

// undistort uses Newton-Raphson on the forward model, starting from the
// distorted point.
func (bc brownConrady) undistort(xd, yd float64, k []float64) (float64, float64) {
	k1, k2, p1, p2, k3 := k[0], k[1], k[2], k[3], k[4]
	x, y := xd, yd
	for i := 0; i < undistortIter; i++ {
		ex, ey := bc.distort(x, y, k)
		ex -= xd
		ey -= yd
		if ex*ex+ey*ey < undistortEps*undistortEps {
			break
		}

		r2 := x*x + y*y
		radial := 1 + r2*(k1+r2*(k2+r2*k3))
		dRad := 2 * (k1 + 2*k2*r2 + 3*k3*r2*r2) // d(radial)/d(r2) * 2.

		a := radial + x*x*dRad + 2*p1*y + 6*p2*x // dxd/dx
		b := x*y*dRad + 2*p1*x + 2*p2*y         // dxd/dy
		c := x*y*dRad + 2*p1*x + 2*p2*y         // dyd/dx
		e := radial + y*y*dRad + 6*p1*y + 2*p2*x // dyd/dy

		det := a*e - b*c
		if det == 0 || math.IsNaN(det) {
			break
		}
		x -= (e*ex - b*ey) / det
		y -= (-c*ex + a*ey) / det
	}
	return x, y
}

type kannalaBrandt struct{}

func (kannalaBrandt) name() string   { return "kb" }
func (kannalaBrandt) numCoeffs() int { return 4 }

// kbTheta returns the distorted angle theta_d for the incidence angle theta.
func kbTheta(theta float64, k []float64) float64 {
	t2 := theta * theta
	return theta * (1 + t2*(k[0]+t2*(k[1]+t2*(k[2]+t2*k[3]))))
}

func (kannalaBrandt) distort(x, y float64, k []float64) (float64, float64) {
	r := math.Hypot(x, y)
	if r < 1e-12 {
		return x, y
	}
	theta := math.Atan(r)
	s := kbTheta(theta, k) / r
	return x * s, y * s
}

// undistort solves theta_d(theta) = |(xd, yd)| for theta with Newton's
// method.
func (kannalaBrandt) undistort(xd, yd float64, k []float64) (float64, float64) {
	td := math.Hypot(xd, yd)
	if td < 1e-12 {
		return xd, yd
	}
	td = math.Min(math.Max(td, -math.Pi/2), math.Pi/2)

	theta := td
	for i := 0; i < undistortIter; i++ {
		t2 := theta * theta
		f := kbTheta(theta, k) - td
		df := 1 + t2*(3*k[0]+t2*(5*k[1]+t2*(7*k[2]+t2*9*k[3])))
		if df == 0 {
			break
		}
		step := f / df
		theta -= step
		if math.Abs(step) < undistortEps {
			break
		}
	}
	if theta <= 0 || theta >= math.Pi/2 {
		return math.NaN(), math.NaN()
	}
	s := math.Tan(theta) / td
	return xd * s, yd * s
}
