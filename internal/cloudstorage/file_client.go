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
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileClient stores objects on the local filesystem, one directory per
// bucket. It backs the "file" provider and the stage tests.
type FileClient struct {
	base string

	mu           sync.Mutex
	contentTypes map[string]string
}

var _ Client = (*FileClient)(nil)

// NewFileClient returns a client rooted at base.
func NewFileClient(base string) *FileClient {
	return &FileClient{
		base:         base,
		contentTypes: make(map[string]string),
	}
}

// Path returns where bucket/key lives on disk.
func (c *FileClient) Path(bucket, key string) string {
	return filepath.Join(c.base, bucket, filepath.FromSlash(key))
}

// ContentType reports the content type of the last upload to bucket/key.
func (c *FileClient) ContentType(bucket, key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentTypes[bucket+"/"+key]
}

// DownloadObject copies the requested object to a temp file and returns the filename.
func (c *FileClient) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	src := c.Path(bucket, key)
	fi, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, true, nil
		}
		return "", 0, false, err
	}
	dst, err := os.CreateTemp(tmpdir, "*-"+filepath.Base(key))
	if err != nil {
		return "", 0, false, err
	}
	fail := func(err error) (string, int64, bool, error) {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", 0, false, err
	}

	f, err := os.Open(src)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(dst, f); err != nil {
		return fail(err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, false, err
	}
	return dst.Name(), fi.Size(), false, nil
}

// UploadObject copies a local file into the bucket/key location.
func (c *FileClient) UploadObject(ctx context.Context, bucket, key, sourceFilename, contentType string) error {
	dst := c.Path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := os.Open(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	c.mu.Lock()
	c.contentTypes[bucket+"/"+key] = contentType
	c.mu.Unlock()
	return nil
}
