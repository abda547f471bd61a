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

package cloudstorage

import (
	"context"
	"fmt"

	"github.com/cardinalhq/ontime/config"
	"github.com/cardinalhq/ontime/internal/awsclient"
	"github.com/cardinalhq/ontime/internal/azureclient"
	"github.com/cardinalhq/ontime/internal/gcpclient"
)

const (
	ContentTypeZip  = "application/zip"
	ContentTypeJSON = "application/json"
)

// Client provides a unified interface for blob operations across providers.
type Client interface {
	// DownloadObject downloads an object to a temp file under tmpdir.
	// Returns the temp filename, size, whether the object was not found, and error.
	DownloadObject(ctx context.Context, tmpdir, bucket, key string) (filename string, size int64, notFound bool, err error)

	// UploadObject uploads a local file, replacing any existing object at key.
	UploadObject(ctx context.Context, bucket, key, sourceFilename, contentType string) error
}

// NewClient creates a storage Client for the configured provider.
func NewClient(ctx context.Context, cfg config.StorageConfig) (Client, error) {
	switch cfg.Provider {
	case "gcp", "":
		mgr, err := gcpclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP manager: %w", err)
		}
		var opts []gcpclient.StorageOption
		if cfg.Role != "" {
			opts = append(opts, gcpclient.WithImpersonateServiceAccount(cfg.Role))
		}
		sc, err := mgr.GetStorage(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		return &gcsClient{storageClient: sc}, nil
	case "aws":
		mgr, err := awsclient.NewManager(ctx, awsclient.WithAssumeRoleSessionName("ontime"))
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS manager: %w", err)
		}
		var opts []awsclient.S3Option
		if cfg.Role != "" {
			opts = append(opts, awsclient.WithRole(cfg.Role))
		}
		if cfg.Region != "" {
			opts = append(opts, awsclient.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, awsclient.WithEndpoint(cfg.Endpoint))
		}
		if cfg.UsePathStyle {
			opts = append(opts, awsclient.WithPathStyle())
		}
		s3c, err := mgr.GetS3(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{awsS3Client: s3c}, nil
	case "azure":
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure manager: %w", err)
		}
		endpoint := cfg.Endpoint
		if endpoint == "" && cfg.StorageAccount != "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.StorageAccount)
		}
		bc, err := mgr.GetBlob(ctx,
			azureclient.WithBlobStorageAccount(cfg.StorageAccount),
			azureclient.WithBlobEndpoint(endpoint),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: bc}, nil
	case "file":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("file storage provider requires storage.base_dir")
		}
		return NewFileClient(cfg.BaseDir), nil
	default:
		return nil, fmt.Errorf("unsupported cloud provider: %s", cfg.Provider)
	}
}
