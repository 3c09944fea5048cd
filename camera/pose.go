/*
DESCRIPTION
  pose.go provides the pose of a calibration pattern relative to the camera
  and the Rodrigues rotation conversions it relies on.

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
	"math"

	"github.com/golang/geo/r3"
)

// Pose places a pattern relative to the camera. Rvec is a Rodrigues
// rotation vector (axis scaled by angle in radians).
type Pose struct {
	Rvec r3.Vector
	Tvec r3.Vector
}

// Rotation is a row-major 3x3 rotation matrix.
type Rotation [3][3]float64

// Identity returns the identity rotation.
func Identity() Rotation {
	return Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply rotates v.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// Col returns column i.
func (r Rotation) Col(i int) r3.Vector {
	return r3.Vector{X: r[0][i], Y: r[1][i], Z: r[2][i]}
}

// Rodrigues converts a rotation vector to a rotation matrix.
func Rodrigues(rv r3.Vector) Rotation {
	theta := rv.Norm()
	if theta < 1e-12 {
		// First order approximation, R = I + [rv]x.
		return Rotation{
			{1, -rv.Z, rv.Y},
			{rv.Z, 1, -rv.X},
			{-rv.Y, rv.X, 1},
		}
	}
	k := rv.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c
	return Rotation{
		{c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s},
		{k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s},
		{k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v},
	}
}

// Vector converts r to a rotation vector.
func (r Rotation) Vector() r3.Vector {
	cos := (r[0][0] + r[1][1] + r[2][2] - 1) / 2
	cos = math.Max(-1, math.Min(1, cos))
	theta := math.Acos(cos)
	w := r3.Vector{X: r[2][1] - r[1][2], Y: r[0][2] - r[2][0], Z: r[1][0] - r[0][1]}

	switch {
	case theta < 1e-9:
		return w.Mul(0.5)
	case math.Pi-theta < 1e-6:
		// Near pi the antisymmetric part vanishes, so recover the axis from
		// the symmetric part, R = 2kk' - I.
		i := 0
		if r[1][1] > r[i][i] {
			i = 1
		}
		if r[2][2] > r[i][i] {
			i = 2
		}
		var k [3]float64
		k[i] = math.Sqrt(math.Max(0, (r[i][i]+1)/2))
		for j := 0; j < 3; j++ {
			if j != i {
				k[j] = (r[i][j] + r[j][i]) / (4 * k[i])
			}
		}
		axis := r3.Vector{X: k[0], Y: k[1], Z: k[2]}.Normalize()
		return axis.Mul(theta)
	default:
		return w.Mul(theta / (2 * math.Sin(theta)))
	}
}

// Transform maps a pattern point into camera coordinates.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return Rodrigues(p.Rvec).Apply(v).Add(p.Tvec)
}
