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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ontime/internal/cloudstorage"
)

type zipEntry struct {
	name string
	body string
}

func writeZip(t *testing.T, entries ...zipEntry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	name := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o644))
	return name
}

// Ten rows: two miss a critical field and one has an arrival delay past a day.
const monthCSV = `Year,Month,FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest,DepDelay,ArrDelay,CarrierDelay,Cancelled,Diverted,
2023,1,2023-01-01,AA,100,JFK,LAX,5,10,0,0,0,
2023,1,2023-01-01,DL,200,ATL,ORD,0,2,,0,0,
2023,1,2023-01-02,UA,300,SFO,DEN,,,,1,0,
2023,1,2023-01-02,WN,400,,DAL,7,8,,0,0,
2023,1,2023-01-03,B6,,BOS,FLL,1,1,,0,0,
2023,1,2023-01-03,AS,600,SEA,ANC,20,1500,20,0,0,
2023,1,2023-01-04,NK,700,LAS,MCO,30,25,25,0,0,
2023,1,2023-01-04,F9,800,DEN,PHX,0,0,,0,1,
2023,1,2023-01-05,HA,900,HNL,OGG,12,1439,12,0,0,
2023,1,2023-01-05,AA,1000,DFW,MIA,3,4,,0,0,
`

func TestCleanArchiveMonth(t *testing.T) {
	name := writeZip(t,
		zipEntry{"On_Time_Reporting_2023_1.csv", monthCSV},
		zipEntry{"readme.html", "<html>field descriptions</html>"},
	)

	tbl, err := CleanArchive(name)
	require.NoError(t, err)

	assert.Equal(t, 10, tbl.Stats.InputRows)
	assert.Equal(t, 2, tbl.Stats.MissingCritical)
	assert.Equal(t, 1, tbl.Stats.OutOfRange["ArrDelay"])
	assert.Equal(t, 0, tbl.Stats.OutOfRange["DepDelay"])
	assert.Equal(t, 7, tbl.Stats.OutputRows)
	require.Equal(t, 7, tbl.Len())

	assert.Equal(t, []string{
		"year", "month", "flightdate", "carrier", "flightnum", "origin", "dest",
		"depdelay", "arrdelay", "carrierdelay", "cancelled", "diverted", "unnamed: 12",
	}, tbl.Columns)

	critical := []string{"flightdate", "origin", "dest", "carrier", "flightnum"}
	delays := []string{"depdelay", "arrdelay", "carrierdelay"}
	for i := range tbl.Rows {
		rec, err := tbl.Record(i)
		require.NoError(t, err)
		for _, f := range critical {
			assert.Contains(t, rec, f, "row %d", i)
		}
		for _, f := range delays {
			d, ok := rec[f].(float64)
			require.True(t, ok, "row %d %s is %T", i, f, rec[f])
			assert.GreaterOrEqual(t, d, 0.0)
			assert.Less(t, d, float64(MaxDelayMinutes))
		}
		assert.IsType(t, time.Time{}, rec["flightdate"])
		assert.NotContains(t, rec, "unnamed: 12")
	}

	first, err := tbl.Record(0)
	require.NoError(t, err)
	assert.Equal(t, "AA", first["carrier"])
	assert.Equal(t, int64(2023), first["year"])
	assert.Equal(t, int64(0), first["cancelled"])
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), first["flightdate"])

	// empty delays were imputed as zero
	third, err := tbl.Record(2)
	require.NoError(t, err)
	assert.Equal(t, "UA", third["carrier"])
	assert.Equal(t, 0.0, third["depdelay"])
	assert.Equal(t, 0.0, third["arrdelay"])
}

func TestCleanArchiveCumulativeDrop(t *testing.T) {
	csv := "FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest,DepDelay,ArrDelay\n" +
		"2023-02-01,AA,1,JFK,LAX,-1,5\n" +
		"2023-02-01,AA,2,JFK,LAX,5,2000\n" +
		"2023-02-01,AA,3,JFK,LAX,1440,1440\n" +
		"2023-02-01,AA,4,JFK,LAX,0,0\n"
	tbl, err := CleanArchive(writeZip(t, zipEntry{"feb.csv", csv}))
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, 2, tbl.Stats.OutOfRange["DepDelay"])
	assert.Equal(t, 1, tbl.Stats.OutOfRange["ArrDelay"])
}

func TestReadArchiveEntrySelection(t *testing.T) {
	csv := "a,b\n1,2\n"
	tests := []struct {
		name    string
		entries []zipEntry
		wantErr bool
	}{
		{"single csv", []zipEntry{{"data.csv", csv}}, false},
		{"csv with readme", []zipEntry{{"readme.html", "<p/>"}, {"data.CSV", csv}}, false},
		{"csv in directory", []zipEntry{{"dir/", ""}, {"dir/data.csv", csv}}, false},
		{"single txt entry", []zipEntry{{"On_Time_2023_1.txt", csv}}, false},
		{"single entry without extension", []zipEntry{{"On_Time_2023_1", csv}}, false},
		{"single txt entry with readme", []zipEntry{{"readme.html", "<p/>"}, {"On_Time_2023_1.txt", csv}}, false},
		{"no csv", []zipEntry{{"readme.html", "<p/>"}}, true},
		{"two non-csv entries", []zipEntry{{"a.txt", csv}, {"b.dat", csv}}, true},
		{"empty archive", nil, true},
		{"two csv", []zipEntry{{"a.csv", csv}, {"b.csv", csv}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadArchive(writeZip(t, tt.entries...))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrDataFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, tbl.Columns)
			assert.Equal(t, 1, tbl.Len())
		})
	}
}

func TestReadArchiveNotAZip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "error.zip")
	require.NoError(t, os.WriteFile(name, []byte("<html>404 Not Found</html>"), 0o644))
	_, err := ReadArchive(name)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataFormat)
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{
			"missing critical column",
			"FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin\n2023-01-01,AA,1,JFK\n",
		},
		{
			"non-numeric delay",
			"FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest,DepDelay\n2023-01-01,AA,1,JFK,LAX,late\n",
		},
		{
			"unparseable date",
			"FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest\nyesterday,AA,1,JFK,LAX\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(tt.csv))
			require.NoError(t, err)
			assert.ErrorIs(t, Apply(tbl), ErrDataFormat)
		})
	}
}

func TestApplyRowsDroppedForMissingCriticalBeforeDateParse(t *testing.T) {
	csv := "FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest\n" +
		",AA,1,JFK,LAX\n" +
		"1/15/2023,AA,2,JFK,LAX\n"
	tbl, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.NoError(t, Apply(tbl))
	require.Equal(t, 1, tbl.Len())
	rec, err := tbl.Record(0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), rec["flightdate"])
	assert.Equal(t, int64(2), rec["flightnum"])
}

func TestOutputKey(t *testing.T) {
	assert.Equal(t, "cleaned_data/2023_7.zip", OutputKey("raw_data/2023_7.zip"))
	assert.Equal(t, "other/2023_7.zip", OutputKey("other/2023_7.zip"))
}

func uploadRaw(t *testing.T, store *cloudstorage.FileClient, key string, entries ...zipEntry) {
	t.Helper()
	name := writeZip(t, entries...)
	require.NoError(t, store.UploadObject(context.Background(), "bucket", key, name, cloudstorage.ContentTypeZip))
}

func TestCleanPersistsDeterministicJSON(t *testing.T) {
	store := cloudstorage.NewFileClient(t.TempDir())
	uploadRaw(t, store, "raw_data/2023_1.zip", zipEntry{"month.csv", monthCSV})

	c := New(store, "bucket", t.TempDir())
	ctx := context.Background()

	tbl, err := c.Clean(ctx, "raw_data/2023_1.zip", "")
	require.NoError(t, err)
	assert.Equal(t, 7, tbl.Len())

	first, err := os.ReadFile(store.Path("bucket", "cleaned_data/2023_1.zip"))
	require.NoError(t, err)
	assert.Equal(t, cloudstorage.ContentTypeJSON, store.ContentType("bucket", "cleaned_data/2023_1.zip"))

	_, err = c.Clean(ctx, "raw_data/2023_1.zip", "cleaned_data/again.json")
	require.NoError(t, err)
	second, err := os.ReadFile(store.Path("bucket", "cleaned_data/again.json"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.True(t, bytes.HasPrefix(first, []byte(
		`[{"year":2023,"month":1,"flightdate":"2023-01-01T00:00:00.000Z","carrier":"AA","flightnum":100.0,"origin":"JFK","dest":"LAX","depdelay":5.0,"arrdelay":10.0,"carrierdelay":0.0,"cancelled":0,"diverted":0,"unnamed: 12":null}`)),
		string(first[:min(len(first), 300)]))
}

func TestCleanMissingObject(t *testing.T) {
	store := cloudstorage.NewFileClient(t.TempDir())
	c := New(store, "bucket", t.TempDir())
	_, err := c.Clean(context.Background(), "raw_data/1999_1.zip", "")
	assert.ErrorIs(t, err, ErrDataFormat)
}
