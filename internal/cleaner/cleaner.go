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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/ontime/internal/cloudstorage"
	"github.com/cardinalhq/ontime/internal/logctx"
)

// ErrDataFormat marks a raw archive or CSV that cannot be cleaned.
var ErrDataFormat = errors.New("data format error")

var droppedRows metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/ontime/internal/cleaner")
	var err error
	droppedRows, err = meter.Int64Counter(
		"ontime.cleaner.rows.dropped",
		metric.WithDescription("Rows dropped while cleaning, by rule"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cleaner.rows.dropped counter: %w", err))
	}
}

// OutputKey derives the cleaned key from a raw key by swapping the
// raw_data/ prefix for cleaned_data/. The extension is kept as is.
func OutputKey(rawKey string) string {
	return strings.ReplaceAll(rawKey, "raw_data/", "cleaned_data/")
}

// Cleaner turns a raw monthly archive in blob storage into a cleaned table.
type Cleaner struct {
	store  cloudstorage.Client
	bucket string
	tmpdir string
	tracer trace.Tracer
}

func New(store cloudstorage.Client, bucket, tmpdir string) *Cleaner {
	return &Cleaner{
		store:  store,
		bucket: bucket,
		tmpdir: tmpdir,
		tracer: otel.Tracer("github.com/cardinalhq/ontime/internal/cleaner"),
	}
}

// Clean downloads rawKey, cleans it and writes the result as JSON to outKey.
// An empty outKey means OutputKey(rawKey).
func (c *Cleaner) Clean(ctx context.Context, rawKey, outKey string) (*Table, error) {
	if outKey == "" {
		outKey = OutputKey(rawKey)
	}
	ll := logctx.FromContext(ctx).With(slog.String("key", rawKey))

	ctx, span := c.tracer.Start(ctx, "cleaner.Clean",
		trace.WithAttributes(attribute.String("key", rawKey)))
	defer span.End()

	filename, _, notFound, err := c.store.DownloadObject(ctx, c.tmpdir, c.bucket, rawKey)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("download %s: %w", rawKey, err)
	}
	if notFound {
		return nil, fmt.Errorf("%w: object %s not found", ErrDataFormat, rawKey)
	}
	defer func() { _ = os.Remove(filename) }()

	t, err := CleanArchive(filename)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("clean %s: %w", rawKey, err)
	}
	c.record(ctx, t.Stats)

	if err := c.persist(ctx, t, outKey); err != nil {
		return nil, err
	}

	ll.Info("Cleaned archive",
		slog.String("output", outKey),
		slog.Int("inputRows", t.Stats.InputRows),
		slog.Int("missingCritical", t.Stats.MissingCritical),
		slog.Any("outOfRange", t.Stats.OutOfRange),
		slog.Int("rows", t.Stats.OutputRows))
	return t, nil
}

// CleanArchive reads a local zip archive and applies the cleaning rules.
func CleanArchive(filename string) (*Table, error) {
	t, err := ReadArchive(filename)
	if err != nil {
		return nil, err
	}
	if err := Apply(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Cleaner) persist(ctx context.Context, t *Table, key string) error {
	tmp, err := os.CreateTemp(c.tmpdir, "cleaned-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := t.WriteJSON(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.store.UploadObject(ctx, c.bucket, key, tmp.Name(), cloudstorage.ContentTypeJSON); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (c *Cleaner) record(ctx context.Context, s Stats) {
	if s.MissingCritical > 0 {
		droppedRows.Add(ctx, int64(s.MissingCritical),
			metric.WithAttributes(attribute.String("rule", "missing_critical")))
	}
	for field, n := range s.OutOfRange {
		if n > 0 {
			droppedRows.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("rule", "out_of_range"),
				attribute.String("field", field)))
		}
	}
}
