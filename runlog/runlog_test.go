/*
DESCRIPTION
  runlog_test.go provides testing for run log rotation and archiving.

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

package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func TestArchive(t *testing.T) {
	tests := []struct {
		name string
		keep bool
	}{
		{name: "delete"},
		{name: "keep", keep: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			l := New(dir)
			defer l.Close()
			l.SetKeepLogs(test.keep)
			log := logging.New(logging.Debug, l, true)

			const runs = 3
			for i := 0; i < runs; i++ {
				log.Info("run started", "run", i)
				if err := l.Rotate(); err != nil {
					t.Fatalf("could not rotate: %v", err)
				}
				// Backup names have millisecond resolution.
				time.Sleep(2 * time.Millisecond)
			}

			backups, err := l.Backups()
			if err != nil {
				t.Fatalf("could not list backups: %v", err)
			}
			if len(backups) != runs {
				t.Fatalf("did not get expected backup count. Got: %d, Want: %d", len(backups), runs)
			}
			b, err := os.ReadFile(backups[0])
			if err != nil {
				t.Fatalf("could not read backup: %v", err)
			}
			if !strings.Contains(string(b), "run started") {
				t.Errorf("backup does not hold the run log: %q", b)
			}

			n, err := l.Archive()
			if err != nil {
				t.Errorf("could not archive: %v", err)
			}
			if n != runs {
				t.Errorf("did not get expected archive count. Got: %d, Want: %d", n, runs)
			}
			if backups, _ = l.Backups(); len(backups) != 0 {
				t.Errorf("backups left after archive: %v", backups)
			}

			archived, _ := filepath.Glob(filepath.Join(dir, archiveDir, "camcal-*.log"))
			want := 0
			if test.keep {
				want = runs
			}
			if len(archived) != want {
				t.Errorf("did not get expected archived count. Got: %d, Want: %d", len(archived), want)
			}
			if _, err := os.Stat(filepath.Join(dir, logName)); err != nil {
				t.Errorf("current log missing: %v", err)
			}
		})
	}
}
