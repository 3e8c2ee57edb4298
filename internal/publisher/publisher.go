package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/numbrly/portal/internal/config"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/pubsub"
	"github.com/numbrly/portal/internal/types"
)

// Publisher puts lifecycle events and pending refunds on the bus
type Publisher interface {
	// PublishLifecycle is fire-and-forget: a failure is logged and never
	// undoes the state change that produced the event.
	PublishLifecycle(ctx context.Context, event *types.LifecycleEvent)

	// PublishRefundPending queues a refund for the retry handler
	PublishRefundPending(ctx context.Context, refund *types.RefundPending) error
}

type publisher struct {
	pubSub  pubsub.PubSub
	logger  *logger.Logger
	metrics *metrics.Metrics
	config  *config.Configuration
}

func NewPublisher(cfg *config.Configuration, ps pubsub.PubSub, logger *logger.Logger, m *metrics.Metrics) Publisher {
	return &publisher{
		pubSub:  ps,
		logger:  logger,
		metrics: m,
		config:  cfg,
	}
}

func (p *publisher) PublishLifecycle(ctx context.Context, event *types.LifecycleEvent) {
	p.metrics.RecordLifecycle(event.EventName)

	msg, err := p.newMessage(ctx, event.ID, event)
	if err != nil {
		p.logger.Errorw("failed to marshal lifecycle event",
			"event_id", event.ID,
			"event_name", event.EventName,
			"error", err,
		)
		return
	}
	msg.Metadata.Set("event_name", event.EventName)
	msg.Metadata.Set("user_id", event.UserID)

	if err := p.pubSub.Publish(ctx, p.config.PubSub.EventsTopic, msg); err != nil {
		p.logger.Errorw("failed to publish lifecycle event",
			"event_id", event.ID,
			"event_name", event.EventName,
			"topic", p.config.PubSub.EventsTopic,
			"error", err,
		)
		return
	}

	p.logger.Debugw("published lifecycle event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"user_id", event.UserID,
		"number_id", event.NumberID,
	)
}

func (p *publisher) PublishRefundPending(ctx context.Context, refund *types.RefundPending) error {
	msg, err := p.newMessage(ctx, refund.IdempotencyKey, refund)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode pending refund").
			Mark(ierr.ErrSystem)
	}
	msg.Metadata.Set("user_id", refund.UserID)
	msg.Metadata.Set("number_id", refund.NumberID)

	if err := p.pubSub.Publish(ctx, p.config.Refund.Topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to queue pending refund").
			WithReportableDetails(map[string]any{
				"user_id":   refund.UserID,
				"number_id": refund.NumberID,
				"amount":    refund.Amount,
			}).
			Mark(ierr.ErrSystem)
	}

	p.metrics.RecordRefundPending()
	p.logger.Warnw("queued pending refund",
		"user_id", refund.UserID,
		"number_id", refund.NumberID,
		"amount", refund.Amount,
		"idempotency_key", refund.IdempotencyKey,
	)
	return nil
}

func (p *publisher) newMessage(ctx context.Context, uuid string, payload interface{}) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(uuid, body)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		middleware.SetCorrelationID(requestID, msg)
	}
	return msg, nil
}
