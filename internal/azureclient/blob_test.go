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

package azureclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlobConfigValidate(t *testing.T) {
	bc := blobConfig{}
	assert.Error(t, bc.validate())

	WithBlobStorageAccount("flightdata")(&bc)
	assert.Error(t, bc.validate())

	WithBlobEndpoint("https://flightdata.blob.core.windows.net/")(&bc)
	assert.NoError(t, bc.validate())
	assert.Equal(t, blobClientKey{StorageAccount: "flightdata", Endpoint: "https://flightdata.blob.core.windows.net/"}, blobClientKey(bc))
}
