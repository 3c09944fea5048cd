/*
DESCRIPTION
  camcal calibrates a camera from views of a chessboard taken from a folder
  of images, a video file or a live camera, and saves the fitted model in
  OpenCV FileStorage YAML. It can also undistort a folder of images with a
  previously saved model.

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

// camcal calibrates cameras from chessboard views.
//
// Usage:
//
//	camcal -i images/ -t image -m bc -o camera_calib.yml
//	camcal -t camera -i 0 -m kb -display-result
//	camcal -undistort camera_calib.yml -i images/ -undistort-out out/
//
// Camera and interactive video modes show a window: space captures, Enter
// confirms and Esc finishes or aborts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/camcal/calib"
	"github.com/ausocean/camcal/runlog"
	"github.com/ausocean/camcal/solver"
	"github.com/ausocean/camcal/source"
	"github.com/ausocean/camcal/store"
)

// Logging configuration.
const (
	logSuppress = false
)

// errNoOpenCV is returned when an OpenCV feature is used in a build without it.
var errNoOpenCV = errors.New("built without OpenCV, rebuild with -tags withcv")

// Exit codes.
const (
	exitOK = iota
	exitConfig
	exitResource
	exitNoData
	exitSolver
	exitPersistence
)

// flagKeys maps command line flags to configuration file keys.
var flagKeys = map[string]string{
	"w":              "Cols",
	"h":              "Rows",
	"s":              "CellSize",
	"i":              "Input",
	"t":              "Mode",
	"m":              "Model",
	"o":              "Output",
	"f":              "FPS",
	"display-result": "ShowResult",
	"min-images":     "MinImages",
	"max-images":     "MaxImages",
	"auto-capture":   "AutoCapture",
	"capture-delay":  "CaptureDelay",
	"camera-width":   "CameraWidth",
	"camera-height":  "CameraHeight",
	"plot":           "PlotDir",
	"backend":        "Backend",
	"guess":          "Guess",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	def := calib.DefaultConfig()
	fs := flag.NewFlagSet("camcal", flag.ContinueOnError)
	fs.Int("w", def.Geometry.Cols, "Inner corners per chessboard row")
	fs.Int("h", def.Geometry.Rows, "Inner corners per chessboard column")
	fs.Float64("s", def.Geometry.CellSize, "Chessboard square size (mm)")
	fs.String("i", "", "Input folder, video file or camera index")
	fs.String("t", def.Mode.String(), "Input type: image, video or camera")
	fs.String("m", def.Distortion.String(), "Lens model: bc (Brown-Conrady) or kb (Kannala-Brandt)")
	fs.String("o", def.Output, "Output model file")
	fs.Float64("f", def.FPS, "Frame rate for video and camera input")
	fs.Bool("display-result", false, "Show undistorted frames after calibration")
	nonInteractive := fs.Bool("non-interactive", false, "Use every video frame without operator selection")
	fs.Int("min-images", def.MinImages, "Warn if fewer views than this are usable")
	fs.Int("max-images", def.MaxImages, "Stop acquiring after this many frames")
	fs.Bool("auto-capture", false, "Capture camera frames automatically")
	fs.Float64("capture-delay", def.CaptureDelay.Seconds(), "Seconds between automatic captures")
	fs.Int("camera-width", def.CameraWidth, "Camera frame width")
	fs.Int("camera-height", def.CameraHeight, "Camera frame height")
	fs.String("plot", "", "Directory to write result plots to")
	fs.String("backend", def.Backend, "Solver backend for bc: go or cv")
	fs.String("guess", "", "Model file whose intrinsics start the go solver")
	configPath := fs.String("config", "", "Config file of key value lines; flags override it")
	saveConfig := fs.String("save-config", "", "Write the effective config to this file")
	logDir := fs.String("log-dir", ".", "Directory for run logs")
	keepLogs := fs.Bool("keep-logs", true, "Archive logs of earlier runs instead of deleting them")
	verbose := fs.Bool("v", false, "Log debug messages")
	undistort := fs.String("undistort", "", "Undistort the input folder with this model file instead of calibrating")
	undistortOut := fs.String("undistort-out", "undistorted", "Output folder for -undistort")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	rl := runlog.New(*logDir)
	defer rl.Close()
	rl.SetKeepLogs(*keepLogs)
	if err := rl.Rotate(); err != nil {
		fmt.Fprintln(os.Stderr, "could not rotate run log:", err)
	}

	var logVerbosity int8 = logging.Info
	if *verbose {
		logVerbosity = logging.Debug
	}
	log := logging.New(logVerbosity, io.MultiWriter(os.Stderr, rl), logSuppress)
	if n, err := rl.Archive(); err != nil {
		log.Warning("could not archive earlier run logs", "error", err)
	} else if n > 0 {
		log.Debug("archived earlier run logs", "count", n)
	}

	cfg := def
	if *configPath != "" {
		var err error
		cfg, err = calib.ReadConfig(*configPath)
		if err != nil {
			log.Error("could not read config", "error", err)
			return exitConfig
		}
	}

	// Explicitly set flags override the config file.
	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		if k, ok := flagKeys[f.Name]; ok {
			set[k] = f.Value.String()
		}
	})
	if isSet(fs, "non-interactive") {
		set["Interactive"] = strconv.FormatBool(!*nonInteractive)
	}
	if err := cfg.Update(set); err != nil {
		log.Error("invalid flags", "error", err)
		return exitConfig
	}

	if *undistort != "" {
		n, err := calib.UndistortFolder(*undistort, cfg.Input, *undistortOut, log)
		if err != nil {
			log.Error("could not undistort folder", "error", err)
			return exitCode(err)
		}
		log.Info("done", "images", n)
		return exitOK
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return exitConfig
	}
	if *saveConfig != "" {
		if err := calib.WriteConfig(*saveConfig, cfg); err != nil {
			log.Warning("could not save config", "error", err)
		}
	}

	if err := calibrate(cfg, log); err != nil {
		log.Error("calibration failed", "error", err)
		return exitCode(err)
	}
	return exitOK
}

// calibrate runs a calibration with cfg.
func calibrate(cfg calib.Config, log logging.Logger) error {
	det, err := newDetector(cfg.Geometry, log)
	if err != nil {
		return err
	}

	var opts []calib.RunOption
	if cfg.Backend == calib.BackendCV {
		f, err := cvSolver()
		if err != nil {
			return err
		}
		opts = append(opts, calib.WithSolver(f))
	}
	r, err := calib.NewRun(cfg, det, log, opts...)
	if err != nil {
		return err
	}

	src, disp, err := openSource(cfg, det, log)
	if err != nil {
		return err
	}
	defer src.Close()

	// Image mode has no display of its own.
	if cfg.ShowResult && disp == nil {
		disp, err = newDisplay(cfg, log)
		if err != nil {
			return err
		}
		defer disp.Close()
	}
	return r.Execute(src, disp)
}

// isSet returns whether the named flag was given on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	var found bool
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// exitCode maps run errors to process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, calib.ErrInvalidConfig):
		return exitConfig
	case errors.Is(err, source.ErrResourceUnavailable), errors.Is(err, errNoOpenCV):
		return exitResource
	case errors.Is(err, calib.ErrNoFrames), errors.Is(err, calib.ErrNoUsableData), errors.Is(err, source.ErrAborted):
		return exitNoData
	case errors.Is(err, solver.ErrDiverged), errors.Is(err, solver.ErrIllConditioned), errors.Is(err, solver.ErrNoObservations):
		return exitSolver
	case errors.Is(err, store.ErrPersistence), errors.Is(err, store.ErrNotCalibrated), errors.Is(err, store.ErrMalformed):
		return exitPersistence
	default:
		return exitSolver
	}
}
