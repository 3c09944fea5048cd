/*
DESCRIPTION
  camera_test.go provides testing for the camera model, distortion models
  and undistortion.

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
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

func TestParseDistortion(t *testing.T) {
	tests := []struct {
		in      string
		want    Distortion
		wantErr bool
	}{
		{in: "bc", want: BrownConrady},
		{in: "brown-conrady", want: BrownConrady},
		{in: "kb", want: KannalaBrandt},
		{in: "Kannala-Brandt", want: KannalaBrandt},
		{in: "circles", wantErr: true},
		{in: "", wantErr: true},
	}

	for i, test := range tests {
		got, err := ParseDistortion(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("did not get expected error state for test %d. Got: %v, Want error: %v", i, err, test.wantErr)
			continue
		}
		if err == nil && got != test.want {
			t.Errorf("did not get expected result for test %d. Got: %v, Want: %v", i, got, test.want)
		}
	}
}

func TestNewModel(t *testing.T) {
	for _, d := range []Distortion{BrownConrady, KannalaBrandt} {
		m := NewModel(d)
		if m.Calibrated {
			t.Errorf("new %v model is calibrated", d)
		}
		if len(m.Coeffs) != d.NumCoeffs() {
			t.Errorf("did not get expected coefficient count for %v. Got: %d, Want: %d", d, len(m.Coeffs), d.NumCoeffs())
		}
		if len(m.Poses) != 0 {
			t.Errorf("new %v model has poses", d)
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				want := 0.0
				if i == j {
					want = 1
				}
				if got := m.K.At(i, j); got != want {
					t.Errorf("did not get identity K for %v at (%d,%d). Got: %v", d, i, j, got)
				}
			}
		}
		if err := m.Validate(); err != nil {
			t.Errorf("new %v model is invalid: %v", d, err)
		}
	}
}

func TestDistortionInverse(t *testing.T) {
	tests := []struct {
		d      Distortion
		coeffs []float64
	}{
		{d: BrownConrady, coeffs: []float64{-0.28, 0.07, 0.001, -0.0005, 0}},
		{d: BrownConrady, coeffs: []float64{0.1, -0.02, 0, 0, 0.003}},
		{d: KannalaBrandt, coeffs: []float64{-0.013, 0.02, -0.01, 0.002}},
		{d: KannalaBrandt, coeffs: []float64{0, 0, 0, 0}},
	}

	const tol = 1e-9
	for _, test := range tests {
		for _, p := range []r2.Point{{X: 0, Y: 0}, {X: 0.1, Y: -0.2}, {X: -0.3, Y: 0.25}, {X: 0.4, Y: 0.3}} {
			xd, yd := test.d.Distort(p.X, p.Y, test.coeffs)
			x, y := test.d.Undistort(xd, yd, test.coeffs)
			if math.Abs(x-p.X) > tol || math.Abs(y-p.Y) > tol {
				t.Errorf("did not recover point under %v %v. Got: (%v, %v), Want: %v", test.d, test.coeffs, x, y, p)
			}
		}
	}
}

func TestRodrigues(t *testing.T) {
	for _, rv := range []r3.Vector{
		{},
		{X: 0.1, Y: -0.2, Z: 0.3},
		{X: 1.2, Y: 0.4, Z: -0.7},
		{X: 0, Y: 0, Z: math.Pi - 1e-8},
		{X: math.Pi / math.Sqrt2, Y: math.Pi / math.Sqrt2, Z: 0},
	} {
		r := Rodrigues(rv)

		// Columns must be orthonormal.
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				dot := r.Col(i).Dot(r.Col(j))
				want := 0.0
				if i == j {
					want = 1
				}
				if math.Abs(dot-want) > 1e-12 {
					t.Errorf("rotation for %v is not orthonormal at (%d,%d): %v", rv, i, j, dot)
				}
			}
		}

		got := Rodrigues(r.Vector())
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if math.Abs(got[i][j]-r[i][j]) > 1e-6 {
					t.Errorf("did not get expected round trip rotation for %v. Got: %v, Want: %v", rv, got, r)
				}
			}
		}
	}
}

func TestProject(t *testing.T) {
	m := NewModel(BrownConrady)
	m.K = NewIntrinsics(800, 810, 320, 240)

	// A point on the optical axis projects to the principal point.
	got := m.Project(r3.Vector{Z: 2})
	if got.X != 320 || got.Y != 240 {
		t.Errorf("did not get expected projection. Got: %v, Want: (320, 240)", got)
	}

	pose := Pose{Rvec: r3.Vector{Y: 0.1}, Tvec: r3.Vector{X: 0.05, Z: 1}}
	pts := m.ProjectPattern([]r3.Vector{{}, {X: 0.1}}, pose)
	want := m.Project(pose.Transform(r3.Vector{X: 0.1}))
	if pts[1] != want {
		t.Errorf("did not get expected pattern projection. Got: %v, Want: %v", pts[1], want)
	}
}

// checker returns a simple checker image for undistortion tests.
func checker(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 0xff}
			if (x/cell+y/cell)%2 == 0 {
				c.R, c.G, c.B = 0xff, 0xff, 0xff
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// TestUndistortUncalibrated checks undistortion is a no-op before calibration.
func TestUndistortUncalibrated(t *testing.T) {
	img := checker(64, 48, 8)
	for _, d := range []Distortion{BrownConrady, KannalaBrandt} {
		m := NewModel(d)
		m.K = NewIntrinsics(60, 60, 32, 24)
		m.Coeffs[0] = 0.3
		got := m.Undistort(img)
		if got != image.Image(img) {
			t.Errorf("uncalibrated %v model did not return its input", d)
		}
	}
}

// TestUndistortNotIdempotent checks that undistorting an already undistorted
// image changes it again away from the optical centre, while the centre is
// preserved.
func TestUndistortNotIdempotent(t *testing.T) {
	const w, h = 160, 120
	m := NewModel(BrownConrady)
	m.K = NewIntrinsics(150, 150, w/2, h/2)
	m.Coeffs = []float64{-0.3, 0.1, 0, 0, 0}
	m.Calibrated = true

	once := m.Undistort(checker(w, h, 10)).(*image.NRGBA)
	twice := m.Undistort(once).(*image.NRGBA)

	centre := once.PixOffset(w/2, h/2)
	for c := 0; c < 4; c++ {
		if once.Pix[centre+c] != twice.Pix[centre+c] {
			t.Errorf("optical centre changed under repeated undistortion")
		}
	}

	var diff int
	for i := range once.Pix {
		if once.Pix[i] != twice.Pix[i] {
			diff++
		}
	}
	if diff == 0 {
		t.Errorf("repeated undistortion of a general image was unexpectedly idempotent")
	}
}

func TestMapCache(t *testing.T) {
	m := NewModel(BrownConrady)
	m.K = NewIntrinsics(100, 100, 50, 40)
	m.Calibrated = true

	size := image.Pt(100, 80)
	a := m.Map(size)
	if b := m.Map(size); a != b {
		t.Errorf("map was not cached for repeated size")
	}

	m.Coeffs[0] = -0.1
	if c := m.Map(size); c == a {
		t.Errorf("map was not rebuilt after coefficient change")
	}

	// With zero distortion and new K = K the map is the identity.
	m.Coeffs[0] = 0
	id := m.Map(size)
	for _, p := range []image.Point{{0, 0}, {50, 40}, {99, 79}} {
		x, y := id.At(p.X, p.Y)
		if math.Abs(float64(x)-float64(p.X)) > 1e-4 || math.Abs(float64(y)-float64(p.Y)) > 1e-4 {
			t.Errorf("did not get identity map at %v. Got: (%v, %v)", p, x, y)
		}
	}
}

func TestEstimateNewCameraMatrix(t *testing.T) {
	k := NewIntrinsics(300, 300, 320, 240)
	coeffs := []float64{-0.01, 0.005, 0, 0}
	size := image.Pt(640, 480)

	full := EstimateNewCameraMatrix(k, coeffs, size, 1, size, 1)
	crop := EstimateNewCameraMatrix(k, coeffs, size, 0, size, 1)
	if full.At(0, 0) > crop.At(0, 0) {
		t.Errorf("balance 1 focal length %v should not exceed balance 0 focal length %v", full.At(0, 0), crop.At(0, 0))
	}

	// Symmetric geometry keeps the principal point at the centre.
	if math.Abs(full.At(0, 2)-320) > 1e-6 || math.Abs(full.At(1, 2)-240) > 1e-6 {
		t.Errorf("did not get centred principal point. Got: (%v, %v)", full.At(0, 2), full.At(1, 2))
	}

	half := EstimateNewCameraMatrix(k, coeffs, size, 1, image.Pt(320, 240), 1)
	if math.Abs(half.At(0, 0)-full.At(0, 0)/2) > 1e-9 {
		t.Errorf("did not scale to new size. Got: %v, Want: %v", half.At(0, 0), full.At(0, 0)/2)
	}
}

func TestKannalaBrandtUndistort(t *testing.T) {
	const w, h = 128, 96
	m := NewModel(KannalaBrandt)
	m.K = NewIntrinsics(60, 60, w/2, h/2)
	m.Coeffs = []float64{-0.02, 0.01, 0, 0}
	m.Calibrated = true

	out := m.Undistort(checker(w, h, 8))
	if got := out.Bounds().Size(); got != image.Pt(w, h) {
		t.Errorf("did not get expected output size. Got: %v, Want: %v", got, image.Pt(w, h))
	}
}
