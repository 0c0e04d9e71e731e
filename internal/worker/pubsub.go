package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/ingest"
	"github.com/windforecast/windforecast/internal/station"
)

// JobTypeForecastRefresh requests an ingestion run.
const JobTypeForecastRefresh = "forecast_refresh"

// Disposition tells the subscriber how to settle a message.
type Disposition int

const (
	// Ack settles the message.
	Ack Disposition = iota
	// Nack requests redelivery.
	Nack
)

func (d Disposition) String() string {
	if d == Ack {
		return "ack"
	}
	return "nack"
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           *Runner
	Logger           zerolog.Logger
}

// RefreshMessage is the body of a refresh request.
type RefreshMessage struct {
	JobType   string `json:"job_type"`
	StationID string `json:"station_id,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Runs are serialized, so there is no point pulling more than one.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.Runner, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx ends.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.logger.Debug().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Msg("received pubsub message")

		disposition := h.dispatcher.Handle(ctx, msg.Data)
		if disposition == Ack {
			msg.Ack()
		} else {
			msg.Nack()
		}
		h.logger.Debug().Str("message_id", msg.ID).Stringer("disposition", disposition).Msg("message settled")
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Dispatcher decodes refresh messages and runs them.
type Dispatcher struct {
	runner *Runner
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by runner.
func NewDispatcher(runner *Runner, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{runner: runner, logger: logger}
}

// Handle processes one message body and reports how it should be settled.
// Unknown job types and unknown stations are acked so they are not
// redelivered. Malformed bodies and fatal run errors are nacked.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) Disposition {
	startTime := time.Now()
	logger := d.logger

	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	if msg.JobType != JobTypeForecastRefresh {
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack
	}

	summary, err := d.runner.Run(ctx, ingest.RunOptions{
		StationID: msg.StationID,
		Trigger:   ingest.TriggerPubSub,
	})
	switch {
	case errors.Is(err, station.ErrStationNotFound), errors.Is(err, ingest.ErrNoStations):
		logger.Warn().Err(err).Str("station_id", msg.StationID).Msg("nothing to refresh")
		return Ack
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		return Nack
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Str("run_id", summary.RunID).
		Int("success", len(summary.Success)).
		Int("failed", len(summary.Failed)).
		Int("skipped", len(summary.Skipped)).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	return Ack
}
