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
	"strconv"
	"strings"
	"time"
)

var (
	renames = map[string]string{
		"Reporting_Airline":               "carrier",
		"Flight_Number_Reporting_Airline": "flightnum",
	}

	criticalFields = []string{"FlightDate", "Origin", "Dest", "carrier", "flightnum"}

	// DelayFields are checked in this order; each check drops rows on its own.
	DelayFields = []string{
		"DepDelay",
		"ArrDelay",
		"CarrierDelay",
		"WeatherDelay",
		"NASDelay",
		"SecurityDelay",
		"LateAircraftDelay",
	}
)

// MaxDelayMinutes is the exclusive upper bound for a delay value: a day.
const MaxDelayMinutes = 1440

const dateColumn = "FlightDate"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"1/2/2006",
	"1/2/2006 3:04:05 PM",
}

// ParseFlightDate parses a flight date in any of the layouts BTS has used.
// The result is in UTC.
func ParseFlightDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Apply runs the cleaning rules on t in place.
func Apply(t *Table) error {
	if t.Stats.InputRows == 0 {
		t.Stats.InputRows = len(t.Rows)
	}
	renameColumns(t)
	if err := dropMissingCritical(t); err != nil {
		return err
	}
	if err := cleanDelays(t); err != nil {
		return err
	}
	if err := parseDates(t); err != nil {
		return err
	}
	normalizeColumnNames(t)
	t.Stats.OutputRows = len(t.Rows)
	return nil
}

func renameColumns(t *Table) {
	for i, c := range t.Columns {
		if to, ok := renames[c]; ok {
			t.Columns[i] = to
		}
	}
}

func dropMissingCritical(t *Table) error {
	idx := make([]int, len(criticalFields))
	for i, f := range criticalFields {
		if idx[i] = t.ColumnIndex(f); idx[i] < 0 {
			return fmt.Errorf("%w: missing column %s", ErrDataFormat, f)
		}
	}
	t.Stats.MissingCritical = t.filter(func(row []any) bool {
		for _, i := range idx {
			if row[i] == nil {
				return false
			}
		}
		return true
	})
	return nil
}

func cleanDelays(t *Table) error {
	t.Stats.OutOfRange = make(map[string]int, len(DelayFields))
	for _, f := range DelayFields {
		c := t.ColumnIndex(f)
		if c < 0 {
			continue
		}
		for _, row := range t.Rows {
			switch v := row[c].(type) {
			case nil:
				row[c] = float64(0)
			case int64, float64:
			case string:
				return fmt.Errorf("%w: column %s has non-numeric value %q", ErrDataFormat, f, v)
			}
		}
		t.Stats.OutOfRange[f] = t.filter(func(row []any) bool {
			var d float64
			switch v := row[c].(type) {
			case int64:
				d = float64(v)
			case float64:
				d = v
			}
			return d >= 0 && d < MaxDelayMinutes
		})
	}
	return nil
}

func parseDates(t *Table) error {
	c := t.ColumnIndex(dateColumn)
	if c < 0 {
		return nil
	}
	for i, row := range t.Rows {
		var s string
		switch v := row[c].(type) {
		case string:
			s = v
		case int64:
			s = strconv.FormatInt(v, 10)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case time.Time:
			continue
		}
		d, err := ParseFlightDate(s)
		if err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrDataFormat, i, err)
		}
		row[c] = d
	}
	return nil
}

func normalizeColumnNames(t *Table) {
	for i, c := range t.Columns {
		t.Columns[i] = strings.ToLower(strings.TrimSpace(c))
	}
}
