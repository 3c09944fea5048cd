/*
DESCRIPTION
  undistort.go provides construction of undistortion maps for both lens
  models and bilinear remapping of images through them.

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
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// Fisheye new camera matrix settings used for undistortion.
const (
	fisheyeBalance  = 1.0
	fisheyeFOVScale = 1.0
)

// Map gives, for every destination pixel, the source pixel to sample.
// Coordinates that cannot be mapped are NaN.
type Map struct {
	Size image.Point
	X, Y []float32
	NewK *mat.Dense // Intrinsic matrix of the undistorted image.

	// Model state the map was built from.
	dist   Distortion
	k      []float64
	coeffs []float64
}

// At returns the source coordinate for destination pixel (x, y).
func (mp *Map) At(x, y int) (float32, float32) {
	i := y*mp.Size.X + x
	return mp.X[i], mp.Y[i]
}

// Map returns the undistortion map for images of the given size, building
// and caching it if needed.
func (m *Model) Map(size image.Point) *Map {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mp, ok := m.cache[size]; ok && mp.matches(m) {
		return mp
	}

	var newK *mat.Dense
	switch m.Distortion {
	case KannalaBrandt:
		newK = EstimateNewCameraMatrix(m.K, m.Coeffs, size, fisheyeBalance, size, fisheyeFOVScale)
	default:
		newK = mat.DenseCopyOf(m.K)
	}
	mp := BuildMap(m.K, m.Distortion, m.Coeffs, newK, size)

	if m.cache == nil {
		m.cache = make(map[image.Point]*Map)
	}
	m.cache[size] = mp
	return mp
}

func (mp *Map) matches(m *Model) bool {
	if mp.dist != m.Distortion || len(mp.coeffs) != len(m.Coeffs) {
		return false
	}
	for i, v := range m.K.RawMatrix().Data {
		if mp.k[i] != v {
			return false
		}
	}
	for i, v := range m.Coeffs {
		if mp.coeffs[i] != v {
			return false
		}
	}
	return true
}

// BuildMap builds the map taking an undistorted image with intrinsics newK
// and identity rectification back to the distorted source image with
// intrinsics k and the given coefficients.
func BuildMap(k mat.Matrix, d Distortion, coeffs []float64, newK mat.Matrix, size image.Point) *Map {
	mp := &Map{
		Size:   size,
		X:      make([]float32, size.X*size.Y),
		Y:      make([]float32, size.X*size.Y),
		NewK:   mat.DenseCopyOf(newK),
		dist:   d,
		k:      append([]float64(nil), mat.DenseCopyOf(k).RawMatrix().Data...),
		coeffs: append([]float64(nil), coeffs...),
	}

	fx, fy, cx, cy, skew := intrinsics(k)
	nfx, nfy, ncx, ncy, nskew := intrinsics(newK)
	nan := float32(math.NaN())
	for v := 0; v < size.Y; v++ {
		y := (float64(v) - ncy) / nfy
		for u := 0; u < size.X; u++ {
			x := (float64(u) - ncx - nskew*y) / nfx
			xd, yd := d.Distort(x, y, coeffs)
			i := v*size.X + u
			if math.IsNaN(xd) || math.IsNaN(yd) || math.IsInf(xd, 0) || math.IsInf(yd, 0) {
				mp.X[i], mp.Y[i] = nan, nan
				continue
			}
			mp.X[i] = float32(fx*xd + skew*yd + cx)
			mp.Y[i] = float32(fy*yd + cy)
		}
	}
	return mp
}

// EstimateNewCameraMatrix estimates intrinsics for undistorting a fisheye
// image of the given size so that the result keeps the field of view.
// A balance of 1 keeps every source pixel; 0 crops to the valid region.
// The returned matrix is scaled to newSize.
func EstimateNewCameraMatrix(k mat.Matrix, coeffs []float64, size image.Point, balance float64, newSize image.Point, fovScale float64) *mat.Dense {
	balance = math.Min(math.Max(balance, 0), 1)
	w, h := float64(size.X), float64(size.Y)

	// Edge midpoints of the source image.
	edges := []r2.Point{{X: w / 2, Y: 0}, {X: w, Y: h / 2}, {X: w / 2, Y: h}, {X: 0, Y: h / 2}}

	fx, fy, cx, cy, skew := intrinsics(k)
	aspect := fx / fy

	var cn r2.Point
	for i, e := range edges {
		y := (e.Y - cy) / fy
		x := (e.X - cx - skew*y) / fx
		x, y = KannalaBrandt.Undistort(x, y, coeffs)
		edges[i] = r2.Point{X: x, Y: y * aspect}
		cn = cn.Add(edges[i])
	}
	cn = cn.Mul(1.0 / float64(len(edges)))

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, e := range edges {
		minX, maxX = math.Min(minX, e.X), math.Max(maxX, e.X)
		minY, maxY = math.Min(minY, e.Y), math.Max(maxY, e.Y)
	}

	f1 := w * 0.5 / (cn.X - minX)
	f2 := w * 0.5 / (maxX - cn.X)
	f3 := h * 0.5 * aspect / (cn.Y - minY)
	f4 := h * 0.5 * aspect / (maxY - cn.Y)
	fmin := math.Min(math.Min(f1, f2), math.Min(f3, f4))
	fmax := math.Max(math.Max(f1, f2), math.Max(f3, f4))

	f := balance*fmin + (1-balance)*fmax
	if fovScale > 0 {
		f /= fovScale
	}

	nfx, nfy := f, f
	ncx := -cn.X*f + w*0.5
	ncy := -cn.Y*f + h*aspect*0.5

	// Undo the temporary aspect scaling.
	nfy /= aspect
	ncy /= aspect

	rx, ry := float64(newSize.X)/w, float64(newSize.Y)/h
	return NewIntrinsics(nfx*rx, nfy*ry, ncx*rx, ncy*ry)
}

// Remap samples src through mp with bilinear interpolation. Pixels that map
// outside src are black.
func Remap(src image.Image, mp *Map) *image.NRGBA {
	in := imaging.Clone(src)
	b := in.Bounds()
	sw, sh := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, mp.Size.X, mp.Size.Y))

	for v := 0; v < mp.Size.Y; v++ {
		for u := 0; u < mp.Size.X; u++ {
			d := out.PixOffset(u, v)
			out.Pix[d+3] = 0xff

			sx, sy := mp.At(u, v)
			fx, fy := float64(sx), float64(sy)
			if math.IsNaN(fx) || math.IsNaN(fy) || fx < 0 || fy < 0 || fx > float64(sw-1) || fy > float64(sh-1) {
				continue
			}
			x0, y0 := int(fx), int(fy)
			x1, y1 := min(x0+1, sw-1), min(y0+1, sh-1)
			ax, ay := fx-float64(x0), fy-float64(y0)

			p00 := in.PixOffset(b.Min.X+x0, b.Min.Y+y0)
			p10 := in.PixOffset(b.Min.X+x1, b.Min.Y+y0)
			p01 := in.PixOffset(b.Min.X+x0, b.Min.Y+y1)
			p11 := in.PixOffset(b.Min.X+x1, b.Min.Y+y1)
			for c := 0; c < 4; c++ {
				top := float64(in.Pix[p00+c])*(1-ax) + float64(in.Pix[p10+c])*ax
				bot := float64(in.Pix[p01+c])*(1-ax) + float64(in.Pix[p11+c])*ax
				out.Pix[d+c] = uint8(math.Round(top*(1-ay) + bot*ay))
			}
		}
	}
	return out
}

// Undistort returns img with lens distortion removed. An uncalibrated model
// returns img unchanged.
func (m *Model) Undistort(img image.Image) image.Image {
	if !m.Calibrated {
		return img
	}
	return Remap(img, m.Map(img.Bounds().Size()))
}
