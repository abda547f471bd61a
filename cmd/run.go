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

package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ontime/config"
)

func init() {
	now := time.Now().UTC()
	var (
		year       int
		months     string
		collection string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the pipeline once for a year and a set of months",
		RunE: func(_ *cobra.Command, _ []string) error {
			monthList, err := parseMonths(months)
			if err != nil {
				return err
			}

			doneCtx, doneFx, err := setupTelemetry(serviceName)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if collection != "" {
				cfg.DocStore.Collection = collection
			}

			p, err := buildPipeline(doneCtx, cfg)
			if err != nil {
				return err
			}

			res, err := p.Run(doneCtx, year, monthList)
			if err != nil {
				return err
			}
			for _, m := range res.Months {
				slog.Info("Month summary",
					slog.Int("month", m.Month),
					slog.Bool("skipped", m.Skipped),
					slog.Int("rows", m.Rows),
					slog.Int("documents", m.Loaded))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "year to process")
	cmd.Flags().StringVar(&months, "months", strconv.Itoa(int(now.Month())), "months to process, e.g. 1,2,3 or 1-6")
	cmd.Flags().StringVar(&collection, "collection", "", "target collection (defaults to docstore.collection)")

	rootCmd.AddCommand(cmd)
}

// parseMonths accepts a comma separated list of months and inclusive
// ranges such as "1-3,7".
func parseMonths(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid month %q", part)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid month range %q", part)
			}
		}
		if from > to {
			return nil, fmt.Errorf("invalid month range %q", part)
		}
		for m := from; m <= to; m++ {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no months given")
	}
	return out, nil
}
