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

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/ontime/internal/cloudstorage"
	"github.com/cardinalhq/ontime/internal/logctx"
)

// ErrNetwork marks a fetch that produced no usable response.
var ErrNetwork = errors.New("network failure")

// FailurePolicy decides what happens when the source answers with a
// non-success status.
type FailurePolicy string

const (
	// PolicyProceed logs the failure and stores whatever bytes came back.
	PolicyProceed FailurePolicy = "proceed"
	// PolicySkip stores nothing and reports the month as not fetched.
	PolicySkip FailurePolicy = "skip"
	// PolicyAbort stores nothing and fails with ErrNetwork.
	PolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy maps a config string to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case PolicyProceed, PolicySkip, PolicyAbort:
		return FailurePolicy(s), nil
	case "":
		return PolicyProceed, nil
	}
	return "", fmt.Errorf("unknown fetch failure policy %q", s)
}

// Result describes one fetch attempt.
type Result struct {
	Year       int
	Month      int
	URL        string
	Key        string
	StatusCode int
	Size       int64
	Checksum   uint64
	// Fetched is true when the source answered with a 2xx status.
	Fetched bool
	// Uploaded is true when bytes were written to Key.
	Uploaded bool
}

var fetchCounter metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/ontime/internal/archive")
	var err error
	fetchCounter, err = meter.Int64Counter(
		"ontime.archive.fetch.count",
		metric.WithDescription("Number of archive fetch attempts by HTTP status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.fetch.count counter: %w", err))
	}
}

// Fetcher downloads monthly archives from the remote source into blob storage.
type Fetcher struct {
	baseURL string
	bucket  string
	store   cloudstorage.Client
	client  *http.Client
	policy  FailurePolicy
	tmpdir  string
	tracer  trace.Tracer
}

type Option func(*Fetcher)

func WithBaseURL(u string) Option {
	return func(f *Fetcher) { f.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout bounds a single download. Zero leaves the client without a timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(f *Fetcher) { f.policy = p }
}

func WithTmpDir(dir string) Option {
	return func(f *Fetcher) { f.tmpdir = dir }
}

func NewFetcher(store cloudstorage.Client, bucket, baseURL string, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL: baseURL,
		bucket:  bucket,
		store:   store,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		policy:  PolicyProceed,
		tracer:  otel.Tracer("github.com/cardinalhq/ontime/internal/archive"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SourceURL is the remote location of the archive for year/month.
func SourceURL(baseURL string, year, month int) string {
	return fmt.Sprintf("%s_%d_%d.zip", baseURL, year, month)
}

// RawKey is the blob key the archive for year/month is stored under.
func RawKey(year, month int) string {
	return fmt.Sprintf("raw_data/%d_%d.zip", year, month)
}

// Fetch downloads one archive and stores it at RawKey(year, month).
// A non-success status is handled according to the failure policy; only
// transport errors and storage errors are always returned.
func (f *Fetcher) Fetch(ctx context.Context, year, month int) (Result, error) {
	res := Result{
		Year:  year,
		Month: month,
		URL:   SourceURL(f.baseURL, year, month),
		Key:   RawKey(year, month),
	}
	ll := logctx.FromContext(ctx).With(slog.String("url", res.URL), slog.String("key", res.Key))

	ctx, span := f.tracer.Start(ctx, "archive.Fetch",
		trace.WithAttributes(
			attribute.Int("year", year),
			attribute.Int("month", month),
		),
	)
	defer span.End()

	ll.Info("Downloading archive")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return res, fmt.Errorf("build request for %s: %w", res.URL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("%w: fetch %s: %w", ErrNetwork, res.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	res.Fetched = resp.StatusCode >= 200 && resp.StatusCode < 300
	fetchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strconv.Itoa(resp.StatusCode))))
	span.SetAttributes(attribute.Int("status", resp.StatusCode))

	if !res.Fetched {
		ll.Warn("Failed to download archive", slog.Int("status", resp.StatusCode), slog.String("policy", string(f.policy)))
		switch f.policy {
		case PolicyAbort:
			return res, fmt.Errorf("%w: %s returned status %d", ErrNetwork, res.URL, resp.StatusCode)
		case PolicySkip:
			return res, nil
		}
	} else {
		ll.Info("Downloaded archive", slog.Int("status", resp.StatusCode))
	}

	return f.spoolAndUpload(ctx, ll, res, resp.Body)
}

func (f *Fetcher) spoolAndUpload(ctx context.Context, ll *slog.Logger, res Result, body io.Reader) (Result, error) {
	tmp, err := os.CreateTemp(f.tmpdir, "archive-*.zip")
	if err != nil {
		return res, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := xxhash.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), body)
	if err != nil {
		_ = tmp.Close()
		return res, fmt.Errorf("%w: read body of %s: %w", ErrNetwork, res.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("close temp file: %w", err)
	}
	res.Size = size
	res.Checksum = h.Sum64()

	if err := f.store.UploadObject(ctx, f.bucket, res.Key, tmp.Name(), cloudstorage.ContentTypeZip); err != nil {
		return res, fmt.Errorf("upload %s: %w", res.Key, err)
	}
	res.Uploaded = true

	ll.Info("Uploaded archive",
		slog.Int64("bytes", res.Size),
		slog.String("xxhash", strconv.FormatUint(res.Checksum, 16)))
	return res, nil
}
