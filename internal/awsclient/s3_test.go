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

package awsclient

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

func TestS3Options(t *testing.T) {
	sc := s3Config{}
	for _, opt := range []S3Option{
		WithRole("arn:aws:iam::123456789012:role/etl"),
		WithRegion("us-east-2"),
		WithEndpoint("http://minio:9000"),
		WithPathStyle(),
	} {
		opt(&sc)
	}

	assert.Equal(t, "arn:aws:iam::123456789012:role/etl", sc.RoleARN)
	assert.Equal(t, "us-east-2", sc.Region)

	var o s3.Options
	for _, fn := range sc.applyS3s {
		fn(&o)
	}
	assert.True(t, o.UsePathStyle)
	if assert.NotNil(t, o.BaseEndpoint) {
		assert.Equal(t, "http://minio:9000", *o.BaseEndpoint)
	}
}
