/*
DESCRIPTION
  config.go provides the configuration of a calibration run, its defaults,
  validation, and reading and writing of configuration files.

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

package calib

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/filemap"
	"github.com/ausocean/utils/sliceutils"

	"github.com/ausocean/camcal/camera"
	"github.com/ausocean/camcal/pattern"
)

// ErrInvalidConfig is returned for configurations that cannot be run.
var ErrInvalidConfig = errors.New("invalid configuration")

// Mode selects where frames come from.
type Mode int

// Acquisition modes.
const (
	ModeImage Mode = iota
	ModeVideo
	ModeCamera
)

var modeNames = []string{"image", "video", "camera"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if strings.EqualFold(s, n) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Solver backends.
const (
	BackendGo = "go"
	BackendCV = "cv"
)

// Defaults.
const (
	defaultCols         = 7
	defaultRows         = 6
	defaultCellSize     = 24
	defaultOutput       = "camera_calib.yml"
	defaultFPS          = 30
	defaultMinImages    = 10
	defaultMaxImages    = 100
	defaultCaptureDelay = time.Second
	defaultCameraWidth  = 640
	defaultCameraHeight = 480
)

// Config is the configuration of one calibration run.
type Config struct {
	Geometry     pattern.Geometry
	Input        string // Folder, video path or device index.
	Mode         Mode
	Distortion   camera.Distortion
	Output       string
	FPS          float64
	ShowResult   bool
	Interactive  bool
	MinImages    int // Fewer observations than this are warned about.
	MaxImages    int // Acquisition stops after this many frames.
	AutoCapture  bool
	CaptureDelay time.Duration
	CameraWidth  int
	CameraHeight int
	PlotDir      string
	Backend      string
	Guess        string // Model file whose intrinsics seed the go solver.
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Geometry:     pattern.Geometry{Rows: defaultRows, Cols: defaultCols, CellSize: defaultCellSize},
		Mode:         ModeImage,
		Distortion:   camera.BrownConrady,
		Output:       defaultOutput,
		FPS:          defaultFPS,
		Interactive:  true,
		MinImages:    defaultMinImages,
		MaxImages:    defaultMaxImages,
		CaptureDelay: defaultCaptureDelay,
		CameraWidth:  defaultCameraWidth,
		CameraHeight: defaultCameraHeight,
		Backend:      BackendGo,
	}
}

// Validate checks that c describes a runnable calibration.
func (c Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Mode < ModeImage || c.Mode > ModeCamera:
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, c.Mode)
	case !c.Distortion.Valid():
		return fmt.Errorf("%w: unknown distortion model %v", ErrInvalidConfig, c.Distortion)
	case c.Mode != ModeCamera && c.Input == "":
		return fmt.Errorf("%w: no input for %v mode", ErrInvalidConfig, c.Mode)
	case c.Output == "":
		return fmt.Errorf("%w: no output path", ErrInvalidConfig)
	case !(c.FPS > 0):
		return fmt.Errorf("%w: frame rate must be positive, got %v", ErrInvalidConfig, c.FPS)
	case c.MinImages < 1:
		return fmt.Errorf("%w: minimum images must be at least 1, got %d", ErrInvalidConfig, c.MinImages)
	case c.MaxImages < c.MinImages:
		return fmt.Errorf("%w: maximum images %d is less than minimum %d", ErrInvalidConfig, c.MaxImages, c.MinImages)
	case c.CaptureDelay <= 0:
		return fmt.Errorf("%w: capture delay must be positive, got %v", ErrInvalidConfig, c.CaptureDelay)
	case c.Mode == ModeCamera && (c.CameraWidth <= 0 || c.CameraHeight <= 0):
		return fmt.Errorf("%w: invalid camera frame size %dx%d", ErrInvalidConfig, c.CameraWidth, c.CameraHeight)
	case c.Backend != BackendGo && c.Backend != BackendCV:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Backend == BackendCV && c.Distortion != camera.BrownConrady:
		return fmt.Errorf("%w: %s backend only supports bc", ErrInvalidConfig, BackendCV)
	case c.Backend == BackendCV && c.Guess != "":
		return fmt.Errorf("%w: %s backend does not take an intrinsic guess", ErrInvalidConfig, BackendCV)
	}
	return nil
}

// DeviceIndex returns the camera device index held by Input, which
// defaults to device 0 when empty.
func (c Config) DeviceIndex() (int, error) {
	if c.Input == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(c.Input)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: invalid camera index %q", ErrInvalidConfig, c.Input)
	}
	return id, nil
}

// Configuration file keys, in the order they are written.
var configKeys = []string{
	"Cols", "Rows", "CellSize", "Input", "Mode", "Model", "Output", "FPS",
	"ShowResult", "Interactive", "MinImages", "MaxImages", "AutoCapture",
	"CaptureDelay", "CameraWidth", "CameraHeight", "PlotDir", "Backend",
	"Guess",
}

// configInts lists keys with integer values.
var configInts = []string{
	"Cols", "Rows", "MinImages", "MaxImages", "CameraWidth", "CameraHeight",
}

// configFloats lists keys with real values.
var configFloats = []string{"CellSize", "FPS", "CaptureDelay"}

// configBools lists keys with boolean values.
var configBools = []string{"ShowResult", "Interactive", "AutoCapture"}

// ReadConfig reads a configuration file of "key value" lines. A value is
// the rest of its line after the first space, so paths may contain spaces.
// Missing keys take their default values.
func ReadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config file: %w", err)
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		k, v, _ := strings.Cut(strings.TrimRight(line, "\r"), " ")
		m[k] = v
	}
	c := DefaultConfig()
	if err := c.Update(m); err != nil {
		return Config{}, err
	}
	return c, nil
}

// WriteConfig writes c to path in the format read by ReadConfig.
func WriteConfig(path string, c Config) error {
	return filemap.WriteTo(path, "\n", " ", c.Map(), configKeys)
}

// Update sets the fields named by the keys of m. Empty values leave the
// field unchanged. Unknown keys are an error.
func (c *Config) Update(m map[string]string) error {
	for k, v := range m {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if !sliceutils.ContainsString(configKeys, k) {
			return fmt.Errorf("%w: unknown config key %q", ErrInvalidConfig, k)
		}

		var (
			n   int
			f   float64
			b   bool
			err error
		)
		switch {
		case sliceutils.ContainsString(configInts, k):
			n, err = strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: expected integer for %s, got %q", ErrInvalidConfig, k, v)
			}
		case sliceutils.ContainsString(configFloats, k):
			f, err = strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%w: expected number for %s, got %q", ErrInvalidConfig, k, v)
			}
		case sliceutils.ContainsString(configBools, k):
			b, err = strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: expected bool for %s, got %q", ErrInvalidConfig, k, v)
			}
		}

		switch k {
		case "Cols":
			c.Geometry.Cols = n
		case "Rows":
			c.Geometry.Rows = n
		case "CellSize":
			c.Geometry.CellSize = f
		case "Input":
			c.Input = v
		case "Mode":
			c.Mode, err = ParseMode(v)
		case "Model":
			c.Distortion, err = camera.ParseDistortion(v)
		case "Output":
			c.Output = v
		case "FPS":
			c.FPS = f
		case "ShowResult":
			c.ShowResult = b
		case "Interactive":
			c.Interactive = b
		case "MinImages":
			c.MinImages = n
		case "MaxImages":
			c.MaxImages = n
		case "AutoCapture":
			c.AutoCapture = b
		case "CaptureDelay":
			c.CaptureDelay = time.Duration(f * float64(time.Second))
		case "CameraWidth":
			c.CameraWidth = n
		case "CameraHeight":
			c.CameraHeight = n
		case "PlotDir":
			c.PlotDir = v
		case "Backend":
			c.Backend = v
		case "Guess":
			c.Guess = v
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Map returns c as configuration file key value pairs.
func (c Config) Map() map[string]string {
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
	return map[string]string{
		"Cols":         strconv.Itoa(c.Geometry.Cols),
		"Rows":         strconv.Itoa(c.Geometry.Rows),
		"CellSize":     ftoa(c.Geometry.CellSize),
		"Input":        c.Input,
		"Mode":         c.Mode.String(),
		"Model":        c.Distortion.String(),
		"Output":       c.Output,
		"FPS":          ftoa(c.FPS),
		"ShowResult":   strconv.FormatBool(c.ShowResult),
		"Interactive":  strconv.FormatBool(c.Interactive),
		"MinImages":    strconv.Itoa(c.MinImages),
		"MaxImages":    strconv.Itoa(c.MaxImages),
		"AutoCapture":  strconv.FormatBool(c.AutoCapture),
		"CaptureDelay": ftoa(c.CaptureDelay.Seconds()),
		"CameraWidth":  strconv.Itoa(c.CameraWidth),
		"CameraHeight": strconv.Itoa(c.CameraHeight),
		"PlotDir":      c.PlotDir,
		"Backend":      c.Backend,
		"Guess":        c.Guess,
	}
}
