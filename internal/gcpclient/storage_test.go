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

package gcpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageOptions(t *testing.T) {
	cfg := &storageConfig{}
	WithImpersonateServiceAccount("etl@project.iam.gserviceaccount.com")(cfg)
	assert.Equal(t, "etl@project.iam.gserviceaccount.com", cfg.ServiceAccountEmail)
}

func TestStorageClientKey(t *testing.T) {
	key1 := storageClientKey(storageConfig{ServiceAccountEmail: "a@example.com"})
	key2 := storageClientKey(storageConfig{ServiceAccountEmail: "a@example.com"})
	key3 := storageClientKey(storageConfig{ServiceAccountEmail: "b@example.com"})

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
}

func TestClientOptionsWithoutImpersonation(t *testing.T) {
	opts, err := storageConfig{}.clientOptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opts)
}
