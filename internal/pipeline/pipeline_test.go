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

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ontime/internal/archive"
	"github.com/cardinalhq/ontime/internal/cleaner"
	"github.com/cardinalhq/ontime/internal/cloudstorage"
	"github.com/cardinalhq/ontime/internal/transform"
)

type calls struct {
	mu   sync.Mutex
	keys []string
}

func (c *calls) add(k string) {
	c.mu.Lock()
	c.keys = append(c.keys, k)
	c.mu.Unlock()
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.keys)
	slices.Sort(out)
	return out
}

type fakeFetcher struct {
	calls
	result func(month int) (archive.Result, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, year, month int) (archive.Result, error) {
	f.add(archive.RawKey(year, month))
	if f.result != nil {
		return f.result(month)
	}
	return archive.Result{Year: year, Month: month, Fetched: true, Uploaded: true}, nil
}

type fakeCleaner struct {
	calls
	fail map[string]error
}

func (c *fakeCleaner) Clean(_ context.Context, rawKey, outKey string) (*cleaner.Table, error) {
	c.add(rawKey + "->" + outKey)
	if err := c.fail[rawKey]; err != nil {
		return nil, err
	}
	return &cleaner.Table{Columns: []string{"carrier"}, Rows: [][]any{{"AA"}, {"DL"}}}, nil
}

type fakeLoader struct {
	calls
	err error
}

func (l *fakeLoader) Load(_ context.Context, docs []transform.FlightDocument, collection string) (int, error) {
	l.add(collection)
	if l.err != nil {
		return 0, l.err
	}
	return len(docs), nil
}

func TestValidate(t *testing.T) {
	months, err := Validate(2023, []int{3, 1, 3, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, months)

	for _, tc := range []struct {
		year   int
		months []int
	}{
		{1986, []int{1}},
		{2023, nil},
		{2023, []int{0}},
		{2023, []int{1, 13}},
	} {
		_, err := Validate(tc.year, tc.months)
		assert.ErrorIs(t, err, ErrInvalidRequest, "%d %v", tc.year, tc.months)
	}
}

func TestParseErrorMode(t *testing.T) {
	m, err := ParseErrorMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAbort, m)
	m, err = ParseErrorMode("collect")
	require.NoError(t, err)
	assert.Equal(t, ModeCollect, m)
	_, err = ParseErrorMode("retry")
	assert.Error(t, err)
}

func TestRunSuccess(t *testing.T) {
	f, c, l := &fakeFetcher{}, &fakeCleaner{}, &fakeLoader{}
	p := New(f, c, transform.NewTransformer(), l, WithCollection("flights"))

	res, err := p.Run(context.Background(), 2023, []int{1, 2})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.NoError(t, res.Err())
	assert.NotZero(t, res.RunID)
	assert.Equal(t, 4, res.Loaded)
	assert.Equal(t, []string{
		"raw_data/2023_1.zip->cleaned_data/2023_1.zip",
		"raw_data/2023_2.zip->cleaned_data/2023_2.zip",
	}, c.list())
	assert.Equal(t, []string{"flights", "flights"}, l.list())
	for _, mr := range res.Months {
		assert.Equal(t, 2, mr.Rows)
		assert.Equal(t, 2, mr.Loaded)
	}
}

func TestRunAbortStopsAtFirstFailure(t *testing.T) {
	f := &fakeFetcher{}
	c := &fakeCleaner{fail: map[string]error{"raw_data/2023_2.zip": cleaner.ErrDataFormat}}
	l := &fakeLoader{}
	p := New(f, c, transform.NewTransformer(), l)

	res, err := p.Run(context.Background(), 2023, []int{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, cleaner.ErrDataFormat)
	assert.Contains(t, err.Error(), "month 2")

	assert.Equal(t, []string{"raw_data/2023_1.zip", "raw_data/2023_2.zip", "raw_data/2023_3.zip"}, f.list())
	assert.Len(t, c.list(), 2)
	for _, k := range c.list() {
		assert.NotContains(t, k, "2023_3")
	}
	assert.Len(t, l.list(), 1)

	require.NotNil(t, res)
	assert.False(t, res.Success())
	assert.Equal(t, 2, res.Loaded)
	assert.NoError(t, res.Months[0].Err)
	assert.Error(t, res.Months[1].Err)
	assert.Zero(t, res.Months[2].Rows)
}

func TestRunAbortOnFetchError(t *testing.T) {
	f := &fakeFetcher{result: func(month int) (archive.Result, error) {
		if month == 2 {
			return archive.Result{}, archive.ErrNetwork
		}
		return archive.Result{Fetched: true, Uploaded: true}, nil
	}}
	c := &fakeCleaner{}
	p := New(f, c, transform.NewTransformer(), &fakeLoader{})

	_, err := p.Run(context.Background(), 2023, []int{1, 2, 3})
	assert.ErrorIs(t, err, archive.ErrNetwork)
	assert.Len(t, f.list(), 2)
	assert.Empty(t, c.list())
}

func TestRunCollectAttemptsEveryMonth(t *testing.T) {
	f := &fakeFetcher{result: func(month int) (archive.Result, error) {
		if month == 4 {
			return archive.Result{}, archive.ErrNetwork
		}
		return archive.Result{Fetched: true, Uploaded: true}, nil
	}}
	c := &fakeCleaner{fail: map[string]error{"raw_data/2023_2.zip": cleaner.ErrDataFormat}}
	l := &fakeLoader{}
	p := New(f, c, transform.NewTransformer(), l, WithErrorMode(ModeCollect), WithConcurrency(3))

	res, err := p.Run(context.Background(), 2023, []int{1, 2, 3, 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, cleaner.ErrDataFormat)
	assert.ErrorIs(t, err, archive.ErrNetwork)

	assert.Len(t, c.list(), 3)
	assert.Len(t, l.list(), 2)
	assert.Equal(t, 4, res.Loaded)
	assert.False(t, res.Success())
	assert.Error(t, res.Months[1].Err)
	assert.Error(t, res.Months[3].Err)
	assert.NoError(t, res.Months[2].Err)
}

func TestRunSkippedMonth(t *testing.T) {
	f := &fakeFetcher{result: func(month int) (archive.Result, error) {
		if month == 1 {
			return archive.Result{StatusCode: http.StatusNotFound}, nil
		}
		return archive.Result{Fetched: true, Uploaded: true}, nil
	}}
	c := &fakeCleaner{}
	p := New(f, c, transform.NewTransformer(), &fakeLoader{})

	res, err := p.Run(context.Background(), 2024, []int{1, 2})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.True(t, res.Months[0].Skipped)
	assert.False(t, res.Months[1].Skipped)
	assert.Equal(t, []string{"raw_data/2024_2.zip->cleaned_data/2024_2.zip"}, c.list())
}

func TestRunLoadFailure(t *testing.T) {
	l := &fakeLoader{err: errors.New("connection refused")}
	p := New(&fakeFetcher{}, &fakeCleaner{}, transform.NewTransformer(), l)
	_, err := p.Run(context.Background(), 2023, []int{5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load")
}

func TestRunInvalidRequest(t *testing.T) {
	f := &fakeFetcher{}
	p := New(f, &fakeCleaner{}, transform.NewTransformer(), &fakeLoader{})
	res, err := p.Run(context.Background(), 2023, []int{13})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, res)
	assert.Empty(t, f.list())
}

func zipBytes(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newStages(t *testing.T, handler http.HandlerFunc) (*archive.Fetcher, *cleaner.Cleaner, *cloudstorage.FileClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := cloudstorage.NewFileClient(t.TempDir())
	tmp := t.TempDir()
	f := archive.NewFetcher(store, "bucket", srv.URL+"/OnTime", archive.WithTmpDir(tmp))
	return f, cleaner.New(store, "bucket", tmp), store
}

func TestRunEndToEnd(t *testing.T) {
	csv := "FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest,ArrDelay,Cancelled\n" +
		"2023-03-01,AA,10,JFK,LAX,12,0\n" +
		"2023-03-01,DL,,ATL,ORD,3,0\n" +
		"2023-03-02,UA,30,SFO,DEN,,1\n"
	payload := zipBytes(t, "On_Time_2023_3.csv", csv)
	f, c, store := newStages(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})

	var loaded []transform.FlightDocument
	l := loaderFunc(func(docs []transform.FlightDocument) (int, error) {
		loaded = append(loaded, docs...)
		return len(docs), nil
	})

	res, err := New(f, c, transform.NewTransformer(), l).Run(context.Background(), 2023, []int{3})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	require.Len(t, loaded, 2)
	assert.Equal(t, "10", loaded[0].FlightInfo.FlightNumber)
	assert.Equal(t, 12.0, loaded[0].DelayInfo.TotalDelay)
	assert.Equal(t, "UA", loaded[1].FlightInfo.Airline)
	assert.True(t, loaded[1].StatusFlags.Cancelled)
	assert.Equal(t, cloudstorage.ContentTypeJSON, store.ContentType("bucket", "cleaned_data/2023_3.zip"))
}

// A failed download is stored anyway and then rejected by the cleaner.
func TestRunFailedDownloadAbortsInCleaner(t *testing.T) {
	good := zipBytes(t, "ok.csv", "FlightDate,Reporting_Airline,Flight_Number_Reporting_Airline,Origin,Dest\n2023-01-01,AA,1,JFK,LAX\n")
	f, c, store := newStages(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "_2023_2.zip") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write(good)
	})
	l := &fakeLoader{}

	res, err := New(f, c, transform.NewTransformer(), l).Run(context.Background(), 2023, []int{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, cleaner.ErrDataFormat)
	assert.False(t, res.Months[1].Fetch.Fetched)
	assert.True(t, res.Months[1].Fetch.Uploaded)
	assert.Equal(t, cloudstorage.ContentTypeZip, store.ContentType("bucket", "raw_data/2023_2.zip"))
	assert.Len(t, l.list(), 1)
}

type loaderFunc func([]transform.FlightDocument) (int, error)

func (f loaderFunc) Load(_ context.Context, docs []transform.FlightDocument, _ string) (int, error) {
	return f(docs)
}
