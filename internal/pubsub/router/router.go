package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/pubsub"
	"github.com/numbrly/portal/internal/sentry"
)

// Router manages all message routing. Failed messages are retried with
// exponential backoff and then moved to the poison topic.
type Router struct {
	router *message.Router
	poison message.Publisher
	logger *logger.Logger
	sentry *sentry.Service
	config *config.RefundConfig
}

// NewRouter creates a new message router. Poisoned messages are published
// through ps to the configured poison topic.
func NewRouter(cfg *config.Configuration, ps pubsub.PubSub, logger *logger.Logger, sentry *sentry.Service) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{CloseTimeout: 10 * time.Second},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, err
	}

	poison := pubsub.NewWatermillPublisher(ps)
	poisonQueue, err := middleware.PoisonQueue(poison, cfg.Refund.PoisonTopic)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:          cfg.Refund.MaxRetries,
			InitialInterval:     cfg.Refund.InitialInterval,
			MaxInterval:         cfg.Refund.MaxInterval,
			Multiplier:          2,
			MaxElapsedTime:      cfg.Refund.MaxElapsedTime,
			RandomizationFactor: 0.5,
			OnRetryHook: func(retryNum int, delay time.Duration) {
				logger.Infow("retrying message",
					"retry_number", retryNum,
					"max_retries", cfg.Refund.MaxRetries,
					"delay", delay,
				)
			},
		}.Middleware,
	)

	return &Router{
		router: router,
		poison: poison,
		logger: logger,
		sentry: sentry,
		config: &cfg.Refund,
	}, nil
}

// AddNoPublishHandler adds a handler that doesn't publish messages. Errors
// that retrying cannot fix skip the retry loop and go straight to the poison topic.
func (r *Router) AddNoPublishHandler(
	handlerName string,
	topicName string,
	subscriber message.Subscriber,
	handlerFunc func(msg *message.Message) error,
	middlewares ...message.HandlerMiddleware,
) {
	handler := r.router.AddNoPublisherHandler(
		handlerName,
		topicName,
		subscriber,
		func(msg *message.Message) error {
			span, ctx := r.sentry.StartMessageSpan(msg.Context(), topicName)
			if span != nil {
				defer span.Finish()
				msg.SetContext(ctx)
			}

			err := handlerFunc(msg)
			if err == nil {
				return nil
			}

			r.logger.Errorw("handler failed",
				"handler", handlerName,
				"error", err,
				"correlation_id", middleware.MessageCorrelationID(msg),
				"message_uuid", msg.UUID,
			)

			if !shouldRetry(r.logger, err) {
				r.sentry.CaptureException(err)
				msg.Metadata.Set(middleware.ReasonForPoisonedKey, err.Error())
				msg.Metadata.Set(middleware.PoisonedTopicKey, topicName)
				msg.Metadata.Set(middleware.PoisonedHandlerKey, handlerName)
				if perr := r.poison.Publish(r.config.PoisonTopic, msg); perr != nil {
					return perr
				}
				return nil
			}
			return err
		},
	)

	for _, m := range middlewares {
		handler.AddMiddleware(m)
	}
}

// Run starts the router and blocks until ctx is cancelled or Close is called
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting message router")
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing message router")
	return r.router.Close()
}
