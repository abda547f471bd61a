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
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Cells matching one of these are treated as missing.
var missingMarkers = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"NULL": {},
	"null": {},
	"#N/A": {},
	"None": {},
}

// ReadCSV parses a CSV stream whose first record is the header and types
// every column once all rows are read.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", ErrDataFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrDataFormat, err)
	}

	t := &Table{Columns: headerNames(header)}
	width := len(t.Columns)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataFormat, err)
		}
		row := make([]any, width)
		for i, cell := range rec {
			if _, missing := missingMarkers[cell]; !missing {
				row[i] = cell
			}
		}
		t.Rows = append(t.Rows, row)
	}

	for c := range t.Columns {
		t.typeColumn(c)
	}
	t.Stats.InputRows = len(t.Rows)
	return t, nil
}

// headerNames strips a UTF-8 byte order mark, names blank headers by
// position and suffixes repeated names with their occurrence count.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n)
		} else {
			seen[h] = 1
		}
		names[i] = h
	}
	return names
}

type columnKind int

const (
	kindEmpty columnKind = iota
	kindInt
	kindFloat
	kindString
)

func (t *Table) columnKind(c int) columnKind {
	ints, nums, nulls, values := true, true, false, 0
	for _, row := range t.Rows {
		v := row[c]
		if v == nil {
			nulls = true
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		values++
		if ints {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				ints = false
			}
		}
		if !ints {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				nums = false
				break
			}
		}
	}
	switch {
	case values == 0:
		return kindEmpty
	case ints && !nulls:
		return kindInt
	case nums:
		return kindFloat
	default:
		return kindString
	}
}

// typeColumn converts the raw strings of column c to int64 or float64
// when every present value allows it.
func (t *Table) typeColumn(c int) {
	switch t.columnKind(c) {
	case kindInt:
		for _, row := range t.Rows {
			n, _ := strconv.ParseInt(row[c].(string), 10, 64)
			row[c] = n
		}
	case kindFloat:
		for _, row := range t.Rows {
			if s, ok := row[c].(string); ok {
				f, _ := strconv.ParseFloat(s, 64)
				row[c] = f
			}
		}
	}
}
