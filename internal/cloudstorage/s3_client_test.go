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
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
)

func responseError(status int) error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
		Err:      errors.New("request failed"),
	}
}

func TestS3ErrorIs404(t *testing.T) {
	assert.True(t, s3ErrorIs404(&types.NoSuchKey{}))
	assert.True(t, s3ErrorIs404(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, s3ErrorIs404(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.True(t, s3ErrorIs404(responseError(http.StatusNotFound)))

	assert.False(t, s3ErrorIs404(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, s3ErrorIs404(responseError(http.StatusForbidden)))
	assert.False(t, s3ErrorIs404(errors.New("connection reset")))
}
