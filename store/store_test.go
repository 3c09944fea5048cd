/*
DESCRIPTION
  store_test.go provides testing for saving and loading camera models.

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

package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/diff"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/ausocean/camcal/camera"
)

func bcModel() *camera.Model {
	m := camera.NewModel(camera.BrownConrady)
	m.K = camera.NewIntrinsics(812.3456789012345, 809.1, 321.5, 239.75)
	m.Coeffs = []float64{-0.2134567, 0.0871, 1.5e-05, -0.00081, 0.0123}
	m.Poses = []camera.Pose{
		{Rvec: r3.Vector{X: 0.1, Y: -0.2, Z: 0.05}, Tvec: r3.Vector{X: -60, Y: -50, Z: 450}},
		{Rvec: r3.Vector{X: -0.3, Y: 0.1, Z: 0}, Tvec: r3.Vector{X: -80, Y: -40, Z: 500}},
	}
	m.Calibrated = true
	return m
}

func TestRoundTrip(t *testing.T) {
	kb := camera.NewModel(camera.KannalaBrandt)
	kb.K = camera.NewIntrinsics(301.25, 300.5, 322, 238)
	kb.Coeffs = []float64{0.05, -0.01, 0.002, -1e-4}
	kb.Calibrated = true

	tests := []struct {
		name string
		m    *camera.Model
	}{
		{name: "brown-conrady with poses", m: bcModel()},
		{name: "kannala-brandt without poses", m: kb},
	}

	dir := t.TempDir()
	for _, test := range tests {
		path := filepath.Join(dir, strings.ReplaceAll(test.name, " ", "_")+".yml")
		if err := Save(test.m, path); err != nil {
			t.Fatalf("%s: could not save: %v", test.name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("%s: could not load: %v", test.name, err)
		}
		if !got.Calibrated {
			t.Errorf("%s: loaded model is not calibrated", test.name)
		}
		if len(got.Poses) != 0 {
			t.Errorf("%s: loaded model has poses: %d", test.name, len(got.Poses))
		}
		if got.Distortion != test.m.Distortion {
			t.Errorf("%s: did not get expected distortion. Got: %v, Want: %v", test.name, got.Distortion, test.m.Distortion)
		}
		if !mat.Equal(got.K, test.m.K) {
			t.Errorf("%s: did not get expected camera matrix.\nGot:\n%v\nWant:\n%v", test.name, mat.Formatted(got.K), mat.Formatted(test.m.K))
		}
		if !reflect.DeepEqual(got.Coeffs, test.m.Coeffs) {
			t.Errorf("%s: did not get expected coefficients. Got: %v, Want: %v", test.name, got.Coeffs, test.m.Coeffs)
		}
	}
}

func TestEncode(t *testing.T) {
	const want = `%YAML:1.0
---
camera_matrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [812.3456789012345, 0, 321.5, 0, 809.1, 239.75, 0, 0, 1]
distortion_coefficients: !!opencv-matrix
   rows: 5
   cols: 1
   dt: d
   data: [-0.2134567, 0.0871, 1.5e-05, -0.00081, 0.0123]
rotation_vectors:
   - !!opencv-matrix
     rows: 3
     cols: 1
     dt: d
     data: [0.1, -0.2, 0.05]
   - !!opencv-matrix
     rows: 3
     cols: 1
     dt: d
     data: [-0.3, 0.1, 0]
translation_vectors:
   - !!opencv-matrix
     rows: 3
     cols: 1
     dt: d
     data: [-60, -50, 450]
   - !!opencv-matrix
     rows: 3
     cols: 1
     dt: d
     data: [-80, -40, 500]
`
	var buf bytes.Buffer
	if err := Encode(&buf, bcModel()); err != nil {
		t.Fatalf("could not encode: %v", err)
	}
	if got := buf.String(); got != want {
		t.Errorf("did not get expected output:\n%v", diff.LineDiff(want, got))
	}
}

func TestEncodePoses(t *testing.T) {
	m := bcModel()
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("could not encode: %v", err)
	}
	b := bytes.TrimPrefix(buf.Bytes(), []byte("%YAML:1.0\n"))
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("could not parse output: %v", err)
	}
	root := doc.Content[0]

	for _, key := range []string{keyRotations, keyTranslations} {
		seq := lookup(root, key)
		if seq == nil {
			t.Fatalf("missing %s", key)
		}
		if seq.Kind != yaml.SequenceNode {
			t.Fatalf("did not get expected node kind for %s. Got: %v, Want: %v", key, seq.Kind, yaml.SequenceNode)
		}
		if len(seq.Content) != len(m.Poses) {
			t.Fatalf("did not get expected number of %s. Got: %d, Want: %d", key, len(seq.Content), len(m.Poses))
		}
		for i, n := range seq.Content {
			if n.Tag != matrixTag {
				t.Errorf("%s[%d]: did not get expected tag. Got: %s, Want: %s", key, i, n.Tag, matrixTag)
			}
			rows, cols, data, err := readMatrix(n)
			if err != nil {
				t.Fatalf("%s[%d]: could not read matrix: %v", key, i, err)
			}
			if rows != 3 || cols != 1 {
				t.Errorf("%s[%d]: did not get expected shape. Got: %dx%d, Want: 3x1", key, i, rows, cols)
			}
			v := m.Poses[i].Rvec
			if key == keyTranslations {
				v = m.Poses[i].Tvec
			}
			if want := []float64{v.X, v.Y, v.Z}; !reflect.DeepEqual(data, want) {
				t.Errorf("%s[%d]: did not get expected data. Got: %v, Want: %v", key, i, data, want)
			}
		}
	}
}

func TestSaveErrors(t *testing.T) {
	uncal := bcModel()
	uncal.Calibrated = false

	tests := []struct {
		name string
		m    *camera.Model
		path string
		want error
	}{
		{name: "uncalibrated", m: uncal, path: filepath.Join(t.TempDir(), "m.yml"), want: ErrNotCalibrated},
		{name: "nil model", path: filepath.Join(t.TempDir(), "m.yml"), want: ErrNotCalibrated},
		{name: "bad path", m: bcModel(), path: filepath.Join(t.TempDir(), "missing", "m.yml"), want: ErrPersistence},
	}

	for _, test := range tests {
		err := Save(test.m, test.path)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: did not get expected error. Got: %v, Want: %v", test.name, err, test.want)
		}
		if _, err := os.Stat(test.path); err == nil {
			t.Errorf("%s: file written despite error", test.name)
		}
	}
}

func TestLoad(t *testing.T) {
	const twoEntries = `%YAML:1.0
---
camera_matrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 500., 0., 320., 0., 500., 240., 0., 0., 1. ]
distortion_coefficients: !!opencv-matrix
   rows: 1
   cols: 4
   dt: d
   data: [ 0.1, 0.01, -0.001, 0. ]
`
	const badCount = `camera_matrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 500, 0, 320, 0, 500, 240, 0, 0 ]
distortion_coefficients: !!opencv-matrix
   rows: 5
   cols: 1
   dt: d
   data: [ 0, 0, 0, 0, 0 ]
`
	const noCoeffs = `camera_matrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 500, 0, 320, 0, 500, 240, 0, 0, 1 ]
`
	const threeCoeffs = `camera_matrix: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 500, 0, 320, 0, 500, 240, 0, 0, 1 ]
distortion_coefficients: !!opencv-matrix
   rows: 3
   cols: 1
   dt: d
   data: [ 0, 0, 0 ]
`

	tests := []struct {
		name  string
		input string
		dist  camera.Distortion
		want  error
	}{
		{name: "two entries", input: twoEntries, dist: camera.KannalaBrandt},
		{name: "short data", input: badCount, want: ErrMalformed},
		{name: "no coefficients", input: noCoeffs, want: ErrMalformed},
		{name: "unknown model", input: threeCoeffs, want: ErrMalformed},
		{name: "not yaml", input: "camera_matrix: [ 1, 2\n", want: ErrMalformed},
		{name: "empty", input: "", want: ErrMalformed},
	}

	dir := t.TempDir()
	for i, test := range tests {
		path := filepath.Join(dir, "model"+string(rune('a'+i))+".yml")
		if err := os.WriteFile(path, []byte(test.input), 0644); err != nil {
			t.Fatalf("could not write test file: %v", err)
		}
		m, err := Load(path)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: did not get expected error. Got: %v, Want: %v", test.name, err, test.want)
			continue
		}
		if test.want != nil {
			if m != nil {
				t.Errorf("%s: got model with error", test.name)
			}
			continue
		}
		if m.Distortion != test.dist {
			t.Errorf("%s: did not get expected distortion. Got: %v, Want: %v", test.name, m.Distortion, test.dist)
		}
		if !m.Calibrated || len(m.Poses) != 0 {
			t.Errorf("%s: did not get calibrated model without poses", test.name)
		}
		if m.Fx() != 500 || m.Cy() != 240 {
			t.Errorf("%s: did not get expected intrinsics. Got: fx=%v cy=%v", test.name, m.Fx(), m.Cy())
		}
	}
}

// TestLoadMissing checks that a failed load leaves the caller's model alone.
func TestLoadMissing(t *testing.T) {
	model := camera.NewModel(camera.BrownConrady)
	m, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, ErrPersistence)
	}
	if m != nil {
		model = m
	}
	if model.Calibrated {
		t.Errorf("model is calibrated after failed load")
	}
}
