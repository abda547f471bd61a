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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ontime/config"
)

func TestFileClientLifecycle(t *testing.T) {
	base := t.TempDir()
	client := NewFileClient(base)

	src := filepath.Join(t.TempDir(), "src.zip")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	require.NoError(t, client.UploadObject(context.Background(), "bucket", "raw_data/2023_1.zip", src, ContentTypeZip))
	require.Equal(t, ContentTypeZip, client.ContentType("bucket", "raw_data/2023_1.zip"))

	tmp := t.TempDir()
	dst, size, notFound, err := client.DownloadObject(context.Background(), tmp, "bucket", "raw_data/2023_1.zip")
	require.NoError(t, err)
	require.False(t, notFound)
	require.Equal(t, int64(5), size)
	require.True(t, strings.HasSuffix(dst, "2023_1.zip"))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestFileClientOverwrite(t *testing.T) {
	client := NewFileClient(t.TempDir())
	dir := t.TempDir()

	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")
	require.NoError(t, os.WriteFile(first, []byte("first version"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("v2"), 0o644))

	require.NoError(t, client.UploadObject(context.Background(), "b", "k.json", first, ContentTypeJSON))
	require.NoError(t, client.UploadObject(context.Background(), "b", "k.json", second, ContentTypeJSON))

	data, err := os.ReadFile(client.Path("b", "k.json"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
}

func TestFileClientNotFound(t *testing.T) {
	client := NewFileClient(t.TempDir())

	name, size, notFound, err := client.DownloadObject(context.Background(), t.TempDir(), "bucket", "missing.zip")
	require.NoError(t, err)
	require.True(t, notFound)
	require.Empty(t, name)
	require.Zero(t, size)
}

func TestFileClientFailedCopyRemovesTempFile(t *testing.T) {
	client := NewFileClient(t.TempDir())
	// a directory at the object path stats fine but cannot be read
	require.NoError(t, os.MkdirAll(client.Path("bucket", "raw_data/2023_1.zip"), 0o755))

	tmp := t.TempDir()
	name, _, notFound, err := client.DownloadObject(context.Background(), tmp, "bucket", "raw_data/2023_1.zip")
	require.Error(t, err)
	require.False(t, notFound)
	require.Empty(t, name)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestNewClientFileProvider(t *testing.T) {
	c, err := NewClient(context.Background(), config.StorageConfig{Provider: "file", BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &FileClient{}, c)

	_, err = NewClient(context.Background(), config.StorageConfig{Provider: "file"})
	require.Error(t, err)

	_, err = NewClient(context.Background(), config.StorageConfig{Provider: "ftp"})
	require.Error(t, err)
}
