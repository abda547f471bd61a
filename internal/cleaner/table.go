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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Table is a cleaned dataset: named columns and rows of typed cells.
// A cell is nil (missing), int64, float64, string or time.Time.
type Table struct {
	Columns []string
	Rows    [][]any
	Stats   Stats
}

// Stats counts what the cleaning rules did to a table.
type Stats struct {
	InputRows       int
	MissingCritical int
	// OutOfRange counts rows dropped by each delay field's range check.
	OutOfRange map[string]int
	OutputRows int
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Record returns row i as a column name to value map. Missing cells are
// left out of the map rather than stored as nil.
func (t *Table) Record(i int) (map[string]any, error) {
	if i < 0 || i >= len(t.Rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, len(t.Rows))
	}
	row := t.Rows[i]
	if len(row) != len(t.Columns) {
		return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(t.Columns))
	}
	rec := make(map[string]any, len(row))
	for j, v := range row {
		if v != nil {
			rec[t.Columns[j]] = v
		}
	}
	return rec, nil
}

// filter keeps the rows for which keep returns true and reports how many
// were dropped.
func (t *Table) filter(keep func(row []any) bool) int {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	dropped := len(t.Rows) - len(kept)
	clear(t.Rows[len(kept):])
	t.Rows = kept
	return dropped
}

const isoLayout = "2006-01-02T15:04:05.000Z"

// WriteJSON writes the table as a JSON array of records. Keys follow
// column order, missing cells are null and timestamps are ISO-8601 UTC
// with millisecond precision, so equal tables always encode to equal bytes.
func (t *Table) WriteJSON(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	enc := newValueEncoder()

	keys := make([][]byte, len(t.Columns))
	for i, c := range t.Columns {
		k, err := enc.appendString(nil, c)
		if err != nil {
			return fmt.Errorf("column %q: %w", c, err)
		}
		keys[i] = append(k, ':')
	}

	buf := make([]byte, 0, 1024)
	buf = append(buf, '[')
	for i, row := range t.Rows {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '{')
		for j, v := range row {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, keys[j]...)
			var err error
			if buf, err = enc.appendValue(buf, v); err != nil {
				return fmt.Errorf("row %d column %q: %w", i, t.Columns[j], err)
			}
		}
		buf = append(buf, '}')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
		buf = buf[:0]
	}
	buf = append(buf, ']')
	if _, err := bw.Write(buf); err != nil {
		return err
	}
	return bw.Flush()
}

// valueEncoder renders single cells. Strings go through encoding/json
// without HTML escaping; numbers and timestamps use fixed layouts.
type valueEncoder struct {
	scratch bytes.Buffer
	enc     *json.Encoder
}

func newValueEncoder() *valueEncoder {
	e := &valueEncoder{}
	e.enc = json.NewEncoder(&e.scratch)
	e.enc.SetEscapeHTML(false)
	return e
}

func (e *valueEncoder) appendString(buf []byte, s string) ([]byte, error) {
	e.scratch.Reset()
	if err := e.enc.Encode(s); err != nil {
		return buf, err
	}
	return append(buf, bytes.TrimSuffix(e.scratch.Bytes(), []byte{'\n'})...), nil
}

func (e *valueEncoder) appendValue(buf []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case int64:
		return strconv.AppendInt(buf, x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return append(buf, "null"...), nil
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.AppendFloat(buf, x, 'f', 1, 64), nil
		}
		return strconv.AppendFloat(buf, x, 'g', -1, 64), nil
	case string:
		return e.appendString(buf, x)
	case bool:
		return strconv.AppendBool(buf, x), nil
	case time.Time:
		buf = append(buf, '"')
		buf = x.UTC().AppendFormat(buf, isoLayout)
		return append(buf, '"'), nil
	}
	return buf, fmt.Errorf("unsupported cell type %T", v)
}
