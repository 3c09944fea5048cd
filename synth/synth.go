/*
DESCRIPTION
  synth.go provides generation of synthetic chessboard views, both as exact
  observations and as rendered images through a known camera model.

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

// Package synth generates synthetic calibration data for a known camera,
// for testing and for trying the calibration tools without hardware.
package synth

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
)

// View generation limits.
const (
	maxTilt  = 0.45 // Radians about the board x and y axes.
	maxRoll  = 0.3  // Radians about the optical axis.
	maxShift = 0.15 // Fraction of the distance the board centre may move off axis.
)

// Supersampling factor per axis used when rendering.
const samples = 3

// Colours of the rendered scene.
var (
	black      = color.NRGBA{A: 0xff}
	white      = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	background = color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff}
)

// Poses returns n deterministic poses placing the centre of the board at
// roughly the given distance in front of the camera, varied in tilt and
// offset by the seed.
func Poses(g pattern.Geometry, n int, distance float64, seed int64) []camera.Pose {
	rng := rand.New(rand.NewSource(seed))
	centre := r3.Vector{X: float64(g.Cols-1) * g.CellSize / 2, Y: float64(g.Rows-1) * g.CellSize / 2}

	poses := make([]camera.Pose, n)
	for i := range poses {
		uniform := func(a float64) float64 { return (2*rng.Float64() - 1) * a }
		rv := r3.Vector{X: uniform(maxTilt), Y: uniform(maxTilt), Z: uniform(maxRoll)}
		rot := camera.Rodrigues(rv)
		at := r3.Vector{
			X: uniform(maxShift) * distance,
			Y: uniform(maxShift) * distance,
			Z: distance * (1 + uniform(0.15)),
		}
		poses[i] = camera.Pose{Rvec: rv, Tvec: at.Sub(rot.Apply(centre))}
	}
	return poses
}

// Observations projects the pattern through m at each pose, giving exact
// observations.
func Observations(m *camera.Model, g pattern.Geometry, poses []camera.Pose) []pattern.Observation {
	obj := g.ObjectPoints()
	obs := make([]pattern.Observation, len(poses))
	for i, p := range poses {
		obs[i] = pattern.Observation{ImagePoints: m.ProjectPattern(obj, p), ObjectPoints: g.ObjectPoints()}
	}
	return obs
}

// Jitter returns a copy of obs with uniform noise of up to amp pixels added
// to each image point.
func Jitter(obs []pattern.Observation, amp float64, seed int64) []pattern.Observation {
	rng := rand.New(rand.NewSource(seed))
	out := make([]pattern.Observation, len(obs))
	for i, o := range obs {
		pts := make([]r2.Point, o.Len())
		for j, p := range o.ImagePoints {
			pts[j] = r2.Point{X: p.X + (2*rng.Float64()-1)*amp, Y: p.Y + (2*rng.Float64()-1)*amp}
		}
		out[i] = pattern.Observation{ImagePoints: pts, ObjectPoints: o.ObjectPoints}
	}
	return out
}

// Render draws the chessboard at pose as seen through m in an image of the
// given size. The board has one square of white margin around its outer
// squares so corner finders can locate it.
func Render(m *camera.Model, g pattern.Geometry, pose camera.Pose, size image.Point) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))

	// Camera centre and rotation inverse in board coordinates.
	rot := camera.Rodrigues(pose.Rvec)
	inv := transpose(rot)
	origin := inv.Apply(pose.Tvec).Mul(-1)

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			var sum [3]float64
			for sy := 0; sy < samples; sy++ {
				for sx := 0; sx < samples; sx++ {
					px := r2.Point{
						X: float64(x) + (float64(sx)+0.5)/samples - 0.5,
						Y: float64(y) + (float64(sy)+0.5)/samples - 0.5,
					}
					c := shade(g, m, inv, origin, px)
					sum[0] += float64(c.R)
					sum[1] += float64(c.G)
					sum[2] += float64(c.B)
				}
			}
			const n = samples * samples
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(math.Round(sum[0] / n)),
				G: uint8(math.Round(sum[1] / n)),
				B: uint8(math.Round(sum[2] / n)),
				A: 0xff,
			})
		}
	}
	return img
}

// shade returns the scene colour seen through pixel px.
func shade(g pattern.Geometry, m *camera.Model, inv camera.Rotation, origin r3.Vector, px r2.Point) color.NRGBA {
	n := m.UndistortPoint(px)
	if math.IsNaN(n.X) || math.IsNaN(n.Y) {
		return background
	}
	dir := inv.Apply(r3.Vector{X: n.X, Y: n.Y, Z: 1})
	if dir.Z == 0 {
		return background
	}
	lambda := -origin.Z / dir.Z
	if lambda <= 0 {
		return background
	}
	hit := origin.Add(dir.Mul(lambda))

	s := g.CellSize
	u, v := hit.X/s, hit.Y/s

	// Squares span [-1, Cols] by [-1, Rows] in cell units, with one cell of
	// white margin outside.
	switch {
	case u < -2 || v < -2 || u > float64(g.Cols+1) || v > float64(g.Rows+1):
		return background
	case u < -1 || v < -1 || u > float64(g.Cols) || v > float64(g.Rows):
		return white
	}
	if (int(math.Floor(u))+int(math.Floor(v)))%2 == 0 {
		return black
	}
	return white
}

func transpose(r camera.Rotation) camera.Rotation {
	var t camera.Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = r[j][i]
		}
	}
	return t
}

// Dataset renders one image per pose.
func Dataset(m *camera.Model, g pattern.Geometry, poses []camera.Pose, size image.Point) []image.Image {
	imgs := make([]image.Image, len(poses))
	for i, p := range poses {
		imgs[i] = Render(m, g, p, size)
	}
	return imgs
}

// Save writes images to dir as view-NN.png and returns their paths.
func Save(dir string, imgs []image.Image) ([]string, error) {
	paths := make([]string, len(imgs))
	for i, img := range imgs {
		paths[i] = filepath.Join(dir, fmt.Sprintf("view-%02d.png", i))
		if err := imaging.Save(img, paths[i]); err != nil {
			return nil, fmt.Errorf("could not save view %d: %w", i, err)
		}
	}
	return paths, nil
}
