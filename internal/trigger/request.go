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

package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cardinalhq/ontime/internal/pipeline"
)

// Runner runs the pipeline for one year and a set of months.
type Runner interface {
	Run(ctx context.Context, year int, months []int) (*pipeline.Result, error)
}

// Request is the optional body of a trigger.
type Request struct {
	Year   int   `json:"year"`
	Months []int `json:"months"`
}

// ParseRequest reads a trigger body. An empty or non-JSON body, or a
// missing field, falls back to the year and month of now. A JSON body whose
// fields have the wrong types is an error.
func ParseRequest(body []byte, now time.Time) (Request, error) {
	now = now.UTC()
	var req Request
	if len(bytes.TrimSpace(body)) > 0 && json.Valid(body) {
		if err := json.Unmarshal(body, &req); err != nil {
			return Request{}, fmt.Errorf("invalid request body: %w", err)
		}
	}
	if req.Year == 0 {
		req.Year = now.Year()
	}
	if len(req.Months) == 0 {
		req.Months = []int{int(now.Month())}
	}
	return req, nil
}

func formatMonths(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = strconv.Itoa(m)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func successMessage(req Request) string {
	return fmt.Sprintf("Pipeline executed for year %d, months %s", req.Year, formatMonths(req.Months))
}
