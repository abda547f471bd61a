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

package docstore

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/ontime/internal/logctx"
	"github.com/cardinalhq/ontime/internal/transform"
)

const (
	DefaultCollection = "flights"
	DefaultBatchSize  = 1000
)

var insertedDocs metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/ontime/internal/docstore")
	var err error
	insertedDocs, err = meter.Int64Counter(
		"ontime.docstore.inserted",
		metric.WithDescription("Documents inserted into the document store"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create docstore.inserted counter: %w", err))
	}
}

// Loader writes documents to a store in fixed-size batches.
type Loader struct {
	open       Opener
	batchSize  int
	collection string
	tracer     trace.Tracer
}

type LoaderOption func(*Loader)

func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

func WithDefaultCollection(name string) LoaderOption {
	return func(l *Loader) {
		if name != "" {
			l.collection = name
		}
	}
}

func NewLoader(open Opener, opts ...LoaderOption) *Loader {
	l := &Loader{
		open:       open,
		batchSize:  DefaultBatchSize,
		collection: DefaultCollection,
		tracer:     otel.Tracer("github.com/cardinalhq/ontime/internal/docstore"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load inserts docs into collection, then ensures the standard indexes.
// A failed batch stops the load; batches already written stay written.
// The connection is closed on every path.
func (l *Loader) Load(ctx context.Context, docs []transform.FlightDocument, collection string) (n int, err error) {
	if collection == "" {
		collection = l.collection
	}
	ll := logctx.FromContext(ctx).With(slog.String("collection", collection))

	ctx, span := l.tracer.Start(ctx, "docstore.Load", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("documents", len(docs)),
	))
	defer span.End()

	store, err := l.open(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: connect: %w", ErrDatabase, err)
	}
	defer func() {
		if cerr := store.Close(context.WithoutCancel(ctx)); cerr != nil {
			ll.Warn("Failed to close document store", slog.Any("error", cerr))
			if err == nil {
				err = fmt.Errorf("%w: close: %w", ErrDatabase, cerr)
			}
		}
	}()

	for start := 0; start < len(docs); start += l.batchSize {
		end := min(start+l.batchSize, len(docs))
		if err := store.InsertMany(ctx, collection, docs[start:end]); err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("%w: insert batch [%d:%d]: %w", ErrDatabase, start, end, err)
		}
		insertedDocs.Add(ctx, int64(end-start), metric.WithAttributes(attribute.String("collection", collection)))
	}

	for _, field := range IndexFields {
		if err := store.EnsureIndex(ctx, collection, field); err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("%w: index %s: %w", ErrDatabase, field, err)
		}
	}

	ll.Info("Loaded documents", slog.Int("documents", len(docs)))
	return len(docs), nil
}
