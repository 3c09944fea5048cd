/*
DESCRIPTION
  store.go provides persistence of calibrated camera models in the OpenCV
  FileStorage YAML format.

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

// Package store saves and loads camera models as OpenCV FileStorage YAML,
// so that models can be shared with OpenCV based tools.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/ausocean/camcal/camera"
)

// Errors returned by Save and Load.
var (
	ErrNotCalibrated = errors.New("camera model is not calibrated")
	ErrPersistence   = errors.New("could not access model file")
	ErrMalformed     = errors.New("malformed model file")
)

// Top level entry names.
const (
	keyCameraMatrix = "camera_matrix"
	keyDistortion   = "distortion_coefficients"
	keyRotations    = "rotation_vectors"
	keyTranslations = "translation_vectors"
)

const (
	header    = "%YAML:1.0\n---\n"
	matrixTag = "!!opencv-matrix"
	indent    = 3
)

// Save writes the calibrated model m to path, replacing any existing file.
func Save(m *camera.Model, path string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Encode writes the calibrated model m to w. Poses are written only if the
// model has them, as sequences of 3x1 matrices, one per view.
func Encode(w io.Writer, m *camera.Model) error {
	if m == nil || !m.Calibrated {
		return ErrNotCalibrated
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("could not encode model: %w", err)
	}

	k := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			k = append(k, m.K.At(i, j))
		}
	}
	doc := &yaml.Node{Kind: yaml.MappingNode}
	addEntry(doc, keyCameraMatrix, matrixNode(3, 3, k))
	addEntry(doc, keyDistortion, matrixNode(len(m.Coeffs), 1, m.Coeffs))
	if len(m.Poses) != 0 {
		rv := &yaml.Node{Kind: yaml.SequenceNode}
		tv := &yaml.Node{Kind: yaml.SequenceNode}
		for _, p := range m.Poses {
			rv.Content = append(rv.Content, vectorNode(p.Rvec))
			tv.Content = append(tv.Content, vectorNode(p.Tvec))
		}
		addEntry(doc, keyRotations, rv)
		addEntry(doc, keyTranslations, tv)
	}

	// OpenCV requires its own form of the version directive.
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(indent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// addEntry appends key: v to mapping n.
func addEntry(n *yaml.Node, key string, v *yaml.Node) {
	n.Content = append(n.Content, scalarNode(key), v)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

// matrixNode returns a row-major double opencv-matrix node. Values are
// formatted with the fewest digits that parse back to the same float64.
func matrixNode(rows, cols int, data []float64) *yaml.Node {
	vals := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range data {
		vals.Content = append(vals.Content, scalarNode(strconv.FormatFloat(v, 'g', -1, 64)))
	}
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: matrixTag}
	addEntry(n, "rows", scalarNode(strconv.Itoa(rows)))
	addEntry(n, "cols", scalarNode(strconv.Itoa(cols)))
	addEntry(n, "dt", scalarNode("d"))
	addEntry(n, "data", vals)
	return n
}

func vectorNode(v r3.Vector) *yaml.Node {
	return matrixNode(3, 1, []float64{v.X, v.Y, v.Z})
}

// Load reads a model from path. The returned model is calibrated, has no
// poses, and has its distortion model inferred from the number of
// coefficients. Files holding only the camera matrix and coefficients are
// accepted.
func Load(path string) (*camera.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a model from r; see Load.
func Decode(r io.Reader) (*camera.Model, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// The OpenCV version directive is not valid YAML 1.1/1.2 syntax.
	if bytes.HasPrefix(b, []byte("%YAML")) {
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			b = b[i+1:]
		} else {
			b = nil
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected a mapping at top level", ErrMalformed)
	}
	entries := doc.Content[0]

	kNode := lookup(entries, keyCameraMatrix)
	if kNode == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, keyCameraMatrix)
	}
	rows, cols, k, err := readMatrix(kNode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, keyCameraMatrix, err)
	}
	if rows != 3 || cols != 3 {
		return nil, fmt.Errorf("%w: %s is %dx%d, want 3x3", ErrMalformed, keyCameraMatrix, rows, cols)
	}

	dNode := lookup(entries, keyDistortion)
	if dNode == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, keyDistortion)
	}
	_, _, coeffs, err := readMatrix(dNode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, keyDistortion, err)
	}
	d, err := camera.DistortionFromCoeffs(len(coeffs))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	m := camera.NewModel(d)
	m.K = mat.NewDense(3, 3, k)
	m.Coeffs = coeffs
	m.Calibrated = true
	return m, nil
}

// lookup returns the value node for key in mapping n, or nil.
func lookup(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// readMatrix reads an opencv-matrix mapping node holding doubles.
func readMatrix(n *yaml.Node) (rows, cols int, data []float64, err error) {
	if n.Kind != yaml.MappingNode {
		return 0, 0, nil, errors.New("not a matrix")
	}
	field := func(name string) (*yaml.Node, error) {
		v := lookup(n, name)
		if v == nil {
			return nil, fmt.Errorf("missing %s", name)
		}
		return v, nil
	}

	for _, f := range []struct {
		name string
		dst  *int
	}{{"rows", &rows}, {"cols", &cols}} {
		v, err := field(f.name)
		if err != nil {
			return 0, 0, nil, err
		}
		*f.dst, err = strconv.Atoi(v.Value)
		if err != nil || *f.dst < 0 {
			return 0, 0, nil, fmt.Errorf("invalid %s: %q", f.name, v.Value)
		}
	}

	if dt := lookup(n, "dt"); dt != nil && dt.Value != "d" && dt.Value != "f" {
		return 0, 0, nil, fmt.Errorf("unsupported element type: %q", dt.Value)
	}

	v, err := field("data")
	if err != nil {
		return 0, 0, nil, err
	}
	if v.Kind != yaml.SequenceNode {
		return 0, 0, nil, errors.New("data is not a sequence")
	}
	if len(v.Content) != rows*cols {
		return 0, 0, nil, fmt.Errorf("have %d values for %dx%d matrix", len(v.Content), rows, cols)
	}
	data = make([]float64, len(v.Content))
	for i, e := range v.Content {
		data[i], err = strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("invalid value %d: %w", i, err)
		}
	}
	return rows, cols, data, nil
}
