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
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// runEpoch predates the first archive this job was ever pointed at.
var runEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// RunIDGenerator hands out roughly time-ordered ids for pipeline runs so
// log lines from concurrent triggers can be told apart.
type RunIDGenerator struct {
	sf *sonyflake.Sonyflake
}

func NewRunIDGenerator() (*RunIDGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: runEpoch})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &RunIDGenerator{sf: sf}, nil
}

// Next returns a positive id. If the flake clock is exhausted it falls back
// to a random id rather than failing the run.
func (g *RunIDGenerator) Next() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64N(1 << 62)
	}
	return int64(v)
}

var (
	defaultOnce sync.Once
	defaultGen  *RunIDGenerator
)

// NextRunID uses a lazily built process-wide generator.
func NextRunID() int64 {
	defaultOnce.Do(func() {
		gen, err := NewRunIDGenerator()
		if err == nil {
			defaultGen = gen
		}
	})
	if defaultGen == nil {
		return rand.Int64N(1 << 62)
	}
	return defaultGen.Next()
}

// Format renders a run id in base 36 for compact log output.
func Format(id int64) string {
	return strconv.FormatInt(id, 36)
}
