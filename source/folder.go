/*
DESCRIPTION
  folder.go provides a Source that reads still images from a directory.

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

package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"
	"github.com/disintegration/imaging"
)

// Extensions accepted by FolderSource. Matching is case sensitive.
var imageExts = []string{".jpg", ".png"}

// FolderSource provides the images of a directory in filename order.
type FolderSource struct {
	dir   string
	files []string
	idx   int
	log   logging.Logger
}

// NewFolder lists dir and returns a source over its image files.
func NewFolder(dir string, log logging.Logger) (*FolderSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read directory %s: %w", ErrResourceUnavailable, dir, err)
	}

	// ReadDir sorts by filename.
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !sliceutils.ContainsString(imageExts, filepath.Ext(e.Name())) {
			log.Debug("skipping non-image file", "name", e.Name())
			continue
		}
		files = append(files, e.Name())
	}
	log.Info("listed image folder", "dir", dir, "images", len(files))
	return &FolderSource{dir: dir, files: files, log: log}, nil
}

// Len returns the number of image files listed.
func (f *FolderSource) Len() int { return len(f.files) }

// Next implements Source. Files that fail to decode are skipped.
func (f *FolderSource) Next() (*Capture, error) {
	for f.idx < len(f.files) {
		name := f.files[f.idx]
		f.idx++
		img, err := imaging.Open(filepath.Join(f.dir, name))
		if err != nil {
			f.log.Warning("could not decode image", "name", name, "error", err)
			continue
		}
		return &Capture{Frame: img, Name: name}, nil
	}
	return nil, io.EOF
}

// Close implements Source.
func (f *FolderSource) Close() error { return nil }
