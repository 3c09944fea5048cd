/*
DESCRIPTION
  runlog.go provides a rolling log file for calibration runs, with rotation
  per run and archiving of old run logs.

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

// Package runlog manages the log files written by calibration runs.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file settings.
const (
	logName      = "camcal.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	archiveDir   = "backups"
)

// Logger is a rolling log file in a directory. Each rotation leaves the
// previous run's log as a dated backup beside the current file.
type Logger struct {
	dir       string
	LogRoller lumberjack.Logger
	keepLogs  bool
}

// New returns a Logger writing to camcal.log in dir.
func New(dir string) *Logger {
	return &Logger{
		dir: dir,
		LogRoller: lumberjack.Logger{
			Filename:   filepath.Join(dir, logName),
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		},
	}
}

// Write implements io.Writer.
func (l *Logger) Write(p []byte) (int, error) { return l.LogRoller.Write(p) }

// Rotate closes the current log file and dates it, then opens a new one.
func (l *Logger) Rotate() error { return l.LogRoller.Rotate() }

// Close closes the current log file.
func (l *Logger) Close() error { return l.LogRoller.Close() }

// SetKeepLogs sets whether Archive keeps backups in the archive directory
// rather than deleting them.
func (l *Logger) SetKeepLogs(keep bool) { l.keepLogs = keep }

// Backups returns the paths of dated backups beside the current log, oldest
// first.
func (l *Logger) Backups() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.dir, "camcal-*.log"))
	if err != nil {
		return nil, fmt.Errorf("could not glob log backups: %w", err)
	}
	// Backup names embed a sortable timestamp.
	sort.Strings(files)
	return files, nil
}

// Archive moves all backups into the archive directory, or deletes them
// if logs are not being kept. It returns the number of backups handled and
// the first error met; files that fail are left in place.
func (l *Logger) Archive() (int, error) {
	files, err := l.Backups()
	if err != nil {
		return 0, err
	}

	if l.keepLogs && len(files) != 0 {
		if err := os.MkdirAll(filepath.Join(l.dir, archiveDir), os.ModePerm); err != nil {
			return 0, fmt.Errorf("could not create archive directory: %w", err)
		}
	}

	var n int
	var first error
	for _, f := range files {
		if l.keepLogs {
			err = os.Rename(f, filepath.Join(l.dir, archiveDir, filepath.Base(f)))
		} else {
			err = os.Remove(f)
		}
		if err != nil {
			if first == nil {
				first = fmt.Errorf("could not archive %s: %w", filepath.Base(f), err)
			}
			continue
		}
		n++
	}
	return n, first
}
