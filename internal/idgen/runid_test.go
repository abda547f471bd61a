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

package idgen

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDGenerator_Next(t *testing.T) {
	gen, err := NewRunIDGenerator()
	require.NoError(t, err)

	id := gen.Next()
	id2 := gen.Next()
	assert.Positive(t, id)
	assert.Greater(t, id2, id)
}

func TestNextRunID(t *testing.T) {
	assert.NotEqual(t, NextRunID(), NextRunID())
}

func TestFormat(t *testing.T) {
	id := int64(123456789)
	s := Format(id)
	back, err := strconv.ParseInt(s, 36, 64)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}
