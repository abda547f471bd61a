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
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/cardinalhq/ontime/config"
	"github.com/cardinalhq/ontime/internal/healthcheck"
	"github.com/cardinalhq/ontime/internal/trigger"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the pipeline on HTTP requests",
		RunE: func(_ *cobra.Command, _ []string) error {
			doneCtx, doneFx, err := setupTelemetry(serviceName + "-http")
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
			p, err := buildPipeline(doneCtx, cfg)
			if err != nil {
				return err
			}
			return trigger.NewHTTPService(p, cfg.HTTP.Port).Run(doneCtx)
		},
	}
	rootCmd.AddCommand(serveCmd)

	scheduledCmd := &cobra.Command{
		Use:   "scheduled",
		Short: "run the pipeline for each message on a GCP Pub/Sub subscription",
		RunE: func(_ *cobra.Command, _ []string) error {
			doneCtx, doneFx, err := setupTelemetry(serviceName + "-scheduled")
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
			p, err := buildPipeline(doneCtx, cfg)
			if err != nil {
				return err
			}

			// Only set credentials if explicitly provided (ADC will handle GCE/Cloud Run)
			var opts []option.ClientOption
			if keyFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyFile != "" {
				opts = append(opts, option.WithCredentialsFile(keyFile))
			}
			service, err := trigger.NewScheduledService(doneCtx, p, cfg.PubSub.ProjectID, cfg.PubSub.SubscriptionID, opts...)
			if err != nil {
				return fmt.Errorf("failed to create scheduled trigger: %w", err)
			}

			hc := healthcheck.NewServer(cfg.HTTP.Port)
			go func() {
				if err := hc.Start(doneCtx); err != nil {
					slog.Error("Health check server stopped", slog.Any("error", err))
				}
			}()
			service.SetObserver(hc)
			hc.SetStatus(healthcheck.StatusHealthy)
			hc.SetReady(true)

			return service.Run(doneCtx)
		},
	}
	rootCmd.AddCommand(scheduledCmd)
}
