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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// ScheduledService runs the pipeline for each message on a Pub/Sub
// subscription fed by Cloud Scheduler. A message body may carry a
// Request; otherwise the current month is processed.
type ScheduledService struct {
	runner   Runner
	observer RunObserver
	client   *pubsub.Client
	sub      *pubsub.Subscription
	now      func() time.Time
	tracer   trace.Tracer
}

// RunObserver is told about every scheduled run.
type RunObserver interface {
	RecordRun(at time.Time, err error)
}

func NewScheduledService(ctx context.Context, runner Runner, projectID, subscriptionID string, opts ...option.ClientOption) (*ScheduledService, error) {
	if projectID == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if subscriptionID == "" {
		return nil, errors.New("pubsub subscription id is required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	sub := client.Subscription(subscriptionID)
	// one run at a time
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	return &ScheduledService{
		runner: runner,
		client: client,
		sub:    sub,
		now:    time.Now,
		tracer: otel.Tracer("github.com/cardinalhq/ontime/internal/trigger"),
	}, nil
}

// SetObserver registers o to be told the outcome of each run.
func (s *ScheduledService) SetObserver(o RunObserver) {
	s.observer = o
}

// Run receives messages until doneCtx is cancelled.
func (s *ScheduledService) Run(doneCtx context.Context) error {
	slog.Info("Starting scheduled trigger", slog.String("subscription", s.sub.ID()))
	defer func() {
		if err := s.client.Close(); err != nil {
			slog.Error("Failed to close Pub/Sub client", slog.Any("error", err))
		}
	}()

	err := s.sub.Receive(doneCtx, s.messageHandler)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub receive error: %w", err)
	}
	return nil
}

func (s *ScheduledService) messageHandler(ctx context.Context, msg *pubsub.Message) {
	ctx, span := s.tracer.Start(ctx, "trigger.scheduled",
		trace.WithAttributes(
			attribute.String("message_id", msg.ID),
			attribute.String("publish_time", msg.PublishTime.String()),
		))
	defer span.End()

	// Failed runs are acked as well; a run is never retried.
	if err := s.handle(ctx, msg.Data); err != nil {
		span.RecordError(err)
		slog.Error("Scheduled pipeline failed", slog.Any("error", err), slog.String("message_id", msg.ID))
	}
	msg.Ack()
}

func (s *ScheduledService) handle(ctx context.Context, data []byte) (err error) {
	now := s.now()
	if s.observer != nil {
		defer func() { s.observer.RecordRun(now, err) }()
	}
	req, err := ParseRequest(data, now)
	if err != nil {
		return err
	}
	res, err := s.runner.Run(ctx, req.Year, req.Months)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	slog.Info("Scheduled pipeline executed",
		slog.Int("year", req.Year),
		slog.Any("months", req.Months),
		slog.Int("documents", res.Loaded))
	return nil
}
