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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/ontime/internal/archive"
	"github.com/cardinalhq/ontime/internal/cleaner"
	"github.com/cardinalhq/ontime/internal/idgen"
	"github.com/cardinalhq/ontime/internal/logctx"
	"github.com/cardinalhq/ontime/internal/transform"
)

// FirstYear is the first year the on-time performance dataset covers.
const FirstYear = 1987

type Fetcher interface {
	Fetch(ctx context.Context, year, month int) (archive.Result, error)
}

type Cleaner interface {
	Clean(ctx context.Context, rawKey, outKey string) (*cleaner.Table, error)
}

type Transformer interface {
	Transform(t *cleaner.Table) ([]transform.FlightDocument, error)
}

type Loader interface {
	Load(ctx context.Context, docs []transform.FlightDocument, collection string) (int, error)
}

// ErrorMode controls what a failed month does to the rest of a run.
type ErrorMode string

const (
	// ModeAbort stops at the first failure.
	ModeAbort ErrorMode = "abort"
	// ModeCollect attempts every month and reports all failures.
	ModeCollect ErrorMode = "collect"
)

func ParseErrorMode(s string) (ErrorMode, error) {
	switch ErrorMode(s) {
	case ModeAbort, ModeCollect:
		return ErrorMode(s), nil
	case "":
		return ModeAbort, nil
	}
	return "", fmt.Errorf("unknown pipeline error mode %q", s)
}

// MonthResult is the outcome for one month of a run.
type MonthResult struct {
	Month   int
	Fetch   archive.Result
	Skipped bool
	Rows    int
	Loaded  int
	Err     error
}

// Result summarizes a run.
type Result struct {
	RunID  int64
	Year   int
	Months []MonthResult
	Loaded int
}

// Success reports whether no month failed.
func (r *Result) Success() bool {
	for _, m := range r.Months {
		if m.Err != nil {
			return false
		}
	}
	return true
}

// Err aggregates every month failure, or returns nil.
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, m := range r.Months {
		if m.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("month %d: %w", m.Month, m.Err))
		}
	}
	return merr.ErrorOrNil()
}

// ErrInvalidRequest marks a run request with a bad year or month list.
var ErrInvalidRequest = errors.New("invalid run request")

var (
	monthCounter metric.Int64Counter
	runDuration  metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/ontime/internal/pipeline")
	var err error
	monthCounter, err = meter.Int64Counter(
		"ontime.pipeline.months",
		metric.WithDescription("Months processed by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create pipeline.months counter: %w", err))
	}
	runDuration, err = meter.Float64Histogram(
		"ontime.pipeline.run.duration",
		metric.WithDescription("Duration of a pipeline run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create pipeline.run.duration histogram: %w", err))
	}
}

// Pipeline runs fetch, clean, transform and load for a set of months.
type Pipeline struct {
	fetcher     Fetcher
	cleaner     Cleaner
	transformer Transformer
	loader      Loader
	mode        ErrorMode
	concurrency int
	collection  string
	tracer      trace.Tracer
}

type Option func(*Pipeline)

func WithErrorMode(m ErrorMode) Option {
	return func(p *Pipeline) { p.mode = m }
}

// WithConcurrency sets how many months are processed at once in collect mode.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithCollection(name string) Option {
	return func(p *Pipeline) { p.collection = name }
}

func New(f Fetcher, c Cleaner, tr Transformer, l Loader, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     f,
		cleaner:     c,
		transformer: tr,
		loader:      l,
		mode:        ModeAbort,
		concurrency: 1,
		tracer:      otel.Tracer("github.com/cardinalhq/ontime/internal/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks a run request and returns the months in request order
// with duplicates removed.
func Validate(year int, months []int) ([]int, error) {
	if year < FirstYear {
		return nil, fmt.Errorf("%w: year %d is before %d", ErrInvalidRequest, year, FirstYear)
	}
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: no months requested", ErrInvalidRequest)
	}
	seen := mapset.NewThreadUnsafeSet[int]()
	out := make([]int, 0, len(months))
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("%w: month %d out of range 1..12", ErrInvalidRequest, m)
		}
		if seen.Add(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Run fetches every month, then cleans, transforms and loads each one.
// In abort mode the first error ends the run and is returned with the
// partial result. In collect mode all months are attempted and the
// returned error aggregates their failures.
func (p *Pipeline) Run(ctx context.Context, year int, months []int) (*Result, error) {
	months, err := Validate(year, months)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: idgen.NextRunID(), Year: year}
	ctx, ll := logctx.WithRun(ctx, res.RunID, year)
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.Int("year", year),
		attribute.IntSlice("months", months),
		attribute.String("mode", string(p.mode)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		runDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("success", res.Success())))
	}()

	ll.Info("Starting pipeline run", slog.Any("months", months), slog.String("mode", string(p.mode)))

	res.Months = make([]MonthResult, len(months))
	for i, m := range months {
		res.Months[i].Month = m
	}

	for i := range res.Months {
		mr := &res.Months[i]
		mctx, _ := logctx.WithMonth(ctx, mr.Month)
		mr.Fetch, mr.Err = p.fetcher.Fetch(mctx, year, mr.Month)
		if mr.Err != nil {
			mr.Err = fmt.Errorf("fetch: %w", mr.Err)
			if p.mode == ModeAbort {
				span.RecordError(mr.Err)
				return res, fmt.Errorf("month %d: %w", mr.Month, mr.Err)
			}
			continue
		}
		mr.Skipped = !mr.Fetch.Fetched && !mr.Fetch.Uploaded
	}

	if p.mode == ModeAbort {
		for i := range res.Months {
			mr := &res.Months[i]
			p.processMonth(ctx, year, mr)
			res.Loaded += mr.Loaded
			if mr.Err != nil {
				span.RecordError(mr.Err)
				ll.Error("Pipeline run aborted", slog.Int("month", mr.Month), slog.Any("error", mr.Err))
				return res, fmt.Errorf("month %d: %w", mr.Month, mr.Err)
			}
		}
		ll.Info("Finished pipeline run", slog.Int("documents", res.Loaded))
		return res, nil
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range res.Months {
		mr := &res.Months[i]
		if mr.Err != nil {
			continue
		}
		g.Go(func() error {
			p.processMonth(ctx, year, mr)
			return nil
		})
	}
	_ = g.Wait()

	for _, mr := range res.Months {
		res.Loaded += mr.Loaded
	}
	if err := res.Err(); err != nil {
		span.RecordError(err)
		ll.Error("Pipeline run finished with errors", slog.Int("documents", res.Loaded), slog.Any("error", err))
		return res, err
	}
	ll.Info("Finished pipeline run", slog.Int("documents", res.Loaded))
	return res, nil
}

// processMonth runs clean, transform and load for one fetched month and
// records the outcome in mr.
func (p *Pipeline) processMonth(ctx context.Context, year int, mr *MonthResult) {
	ctx, ll := logctx.WithMonth(ctx, mr.Month)
	outcome := "loaded"
	defer func() {
		if mr.Err != nil {
			outcome = "failed"
		}
		monthCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	if mr.Skipped {
		outcome = "skipped"
		ll.Warn("Skipping month without source data", slog.Int("status", mr.Fetch.StatusCode))
		return
	}

	rawKey := archive.RawKey(year, mr.Month)
	table, err := p.cleaner.Clean(ctx, rawKey, cleaner.OutputKey(rawKey))
	if err != nil {
		mr.Err = fmt.Errorf("clean: %w", err)
		return
	}
	mr.Rows = table.Len()

	docs, err := p.transformer.Transform(table)
	if err != nil {
		mr.Err = fmt.Errorf("transform: %w", err)
		return
	}

	n, err := p.loader.Load(ctx, docs, p.collection)
	if err != nil {
		mr.Err = fmt.Errorf("load: %w", err)
		return
	}
	mr.Loaded = n
	ll.Info("Processed month", slog.Int("rows", mr.Rows), slog.Int("documents", n))
}
