package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the trigger subscription.
const (
	JobTypeRefresh     = "refresh"
	JobTypeHealthCheck = "health_check"
)

// TriggerMessage asks the worker to run tasks outside the schedule.
type TriggerMessage struct {
	JobType string   `json:"job_type"`
	Tasks   []string `json:"tasks,omitempty"`
}

// ackable is the part of a Pub/Sub message the handler settles.
type ackable interface {
	Ack()
	Nack()
}

// PubSubHandler runs refresh jobs on demand from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// Start processes trigger messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub trigger handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()
		h.handle(ctx, logger, msg.Data, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handle(ctx context.Context, logger zerolog.Logger, data []byte, msg ackable) {
	start := time.Now()

	var trigger TriggerMessage
	if err := json.Unmarshal(data, &trigger); err != nil {
		logger.Error().Err(err).Msg("failed to parse trigger message")
		// Redelivery cannot fix a malformed body.
		msg.Ack()
		return
	}

	var err error
	switch trigger.JobType {
	case JobTypeRefresh:
		err = runTasks(ctx, h.refreshJob, trigger.Tasks)
	case JobTypeHealthCheck:
		err = runTasks(ctx, h.refreshJob, []string{"origin_health"})
	default:
		logger.Warn().Str("job_type", trigger.JobType).Msg("unknown job type")
		msg.Ack()
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("triggered job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", trigger.JobType).
		Dur("duration", time.Since(start)).
		Msg("triggered job completed")
	msg.Ack()
}

func runTasks(ctx context.Context, job *RefreshJob, names []string) error {
	result := job.Run(ctx, names...)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d refresh tasks failed", result.Failed, result.TotalTasks)
	}
	return nil
}
