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

package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cardinalhq/ontime/internal/cleaner"
)

// ErrMalformedTable marks a table whose rows cannot be read as records.
var ErrMalformedTable = errors.New("malformed table")

// Transformer builds documents stamped with the current time.
type Transformer struct {
	now func() time.Time
}

func NewTransformer() *Transformer {
	return &Transformer{now: func() time.Time { return time.Now().UTC() }}
}

func (tr *Transformer) Transform(t *cleaner.Table) ([]FlightDocument, error) {
	return FromTable(t, tr.now())
}

// FromTable maps every row of t, in order, to a document.
func FromTable(t *cleaner.Table, now time.Time) ([]FlightDocument, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil table", ErrMalformedTable)
	}
	docs := make([]FlightDocument, 0, t.Len())
	for i := range t.Rows {
		rec, err := t.Record(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		docs = append(docs, FromRecord(rec, now))
	}
	return docs, nil
}

// FromRecord maps one cleaned record. Absent or unusable fields take
// their zero value; it never fails.
func FromRecord(rec map[string]any, now time.Time) FlightDocument {
	return FlightDocument{
		FlightInfo: FlightInfo{
			FlightNumber: flightNumber(rec["flightnum"]),
			Airline:      text(rec["carrier"]),
			Date:         date(rec["flightdate"]),
		},
		AirportInfo: AirportInfo{
			Origin:      text(rec["origin"]),
			Destination: text(rec["dest"]),
		},
		DelayInfo: DelayInfo{
			TotalDelay:        number(rec["arrdelay"]),
			CarrierDelay:      number(rec["carrierdelay"]),
			WeatherDelay:      number(rec["weatherdelay"]),
			NASDelay:          number(rec["nasdelay"]),
			SecurityDelay:     number(rec["securitydelay"]),
			LateAircraftDelay: number(rec["lateaircraftdelay"]),
		},
		StatusFlags: StatusFlags{
			Cancelled: flag(rec["cancelled"]),
			Diverted:  flag(rec["diverted"]),
		},
		Metadata: Metadata{
			InsertedAt:  now,
			ProcessedAt: now,
		},
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func number(v any) float64 {
	f, _ := toFloat(v)
	return f
}

func flag(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if s == "true" {
			return true
		}
		if f, ok := toFloat(s); ok {
			return f != 0
		}
		return false
	}
	f, ok := toFloat(v)
	return ok && f != 0
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// flightNumber renders whole numbers without a fractional part so 123,
// "123" and 123.0 all become "123".
func flightNumber(v any) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return strconv.FormatInt(int64(f), 10)
		}
		return s
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return text(v)
}

func date(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		if d, err := cleaner.ParseFlightDate(x); err == nil {
			return d
		}
	}
	return time.Time{}
}
