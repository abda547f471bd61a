// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cleaner

import (
	"fmt"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ReadArchive opens a zip file, selects its single tabular entry and parses
// it. The readme shipped with each monthly archive is ignored.
func ReadArchive(filename string) (*Table, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrDataFormat, err)
	}
	defer zr.Close()

	entry, err := csvEntry(zr.File)
	if err != nil {
		return nil, err
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %s: %v", ErrDataFormat, entry.Name, err)
	}
	defer rc.Close()

	t, err := ReadCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry.Name, err)
	}
	return t, nil
}

func isReadme(name string) bool {
	return strings.Contains(strings.ToLower(path.Base(name)), "readme")
}

// csvEntry picks the tabular entry of an archive. Directories and readme
// files are skipped. A lone remaining entry is used whatever its name;
// otherwise exactly one of the remaining entries must end in .csv.
func csvEntry(files []*zip.File) (*zip.File, error) {
	var candidates, found []*zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() || isReadme(f.Name) {
			continue
		}
		candidates = append(candidates, f)
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			found = append(found, f)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("%w: archive has no csv entry", ErrDataFormat)
	default:
		names := make([]string, len(found))
		for i, f := range found {
			names[i] = f.Name
		}
		return nil, fmt.Errorf("%w: archive has %d csv entries: %s", ErrDataFormat, len(found), strings.Join(names, ", "))
	}
}
