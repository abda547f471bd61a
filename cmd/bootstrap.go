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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cardinalhq/ontime/config"
	"github.com/cardinalhq/ontime/internal/archive"
	"github.com/cardinalhq/ontime/internal/cleaner"
	"github.com/cardinalhq/ontime/internal/cloudstorage"
	"github.com/cardinalhq/ontime/internal/docstore"
	"github.com/cardinalhq/ontime/internal/pipeline"
	"github.com/cardinalhq/ontime/internal/transform"
)

// buildPipeline wires every stage from cfg.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required (ONTIME_STORAGE_BUCKET or BUCKET_NAME)")
	}
	store, err := cloudstorage.NewClient(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	policy, err := archive.ParseFailurePolicy(cfg.Source.FailurePolicy)
	if err != nil {
		return nil, err
	}
	mode, err := pipeline.ParseErrorMode(cfg.Pipeline.ErrorMode)
	if err != nil {
		return nil, err
	}
	open, err := docstore.NewOpener(cfg.DocStore.URI, cfg.DocStore.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to configure document store: %w", err)
	}

	tmpdir := cfg.Pipeline.TmpDir
	if tmpdir == "" {
		tmpdir = os.TempDir()
	}
	if err := os.MkdirAll(tmpdir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp dir: %w", err)
	}

	fetcher := archive.NewFetcher(store, cfg.Storage.Bucket, cfg.Source.BaseURL,
		archive.WithTimeout(cfg.Source.Timeout),
		archive.WithFailurePolicy(policy),
		archive.WithTmpDir(tmpdir),
	)
	loader := docstore.NewLoader(open,
		docstore.WithBatchSize(cfg.DocStore.BatchSize),
		docstore.WithDefaultCollection(cfg.DocStore.Collection),
	)

	slog.Info("Pipeline configured",
		slog.String("provider", cfg.Storage.Provider),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.String("database", cfg.DocStore.Database),
		slog.String("collection", cfg.DocStore.Collection),
		slog.String("failurePolicy", string(policy)),
		slog.String("errorMode", string(mode)),
		slog.Int("concurrency", cfg.Pipeline.Concurrency))

	return pipeline.New(fetcher,
		cleaner.New(store, cfg.Storage.Bucket, tmpdir),
		transform.NewTransformer(),
		loader,
		pipeline.WithErrorMode(mode),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	), nil
}
