package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/metrics"
	"github.com/flexprice/membership/internal/sentry"
)

const deadLetterTopic = "entitlement_webhooks_dlq"

// Router manages all message routing
type Router struct {
	router *message.Router
	dlq    *gochannel.GoChannel
	logger *logger.Logger
	sentry *sentry.Service
	config *config.Webhook
}

// NewRouter creates a new message router with poison queue and retry middleware
func NewRouter(cfg *config.Configuration, logger *logger.Logger, sentry *sentry.Service) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{},
		logger.GetWatermillLogger(),
	)
	if err != nil {
		return nil, err
	}

	dlq := gochannel.NewGoChannel(
		gochannel.Config{Persistent: true},
		logger.GetWatermillLogger(),
	)

	poisonQueue, err := middleware.PoisonQueue(dlq, deadLetterTopic)
	if err != nil {
		return nil, err
	}

	// poison queue first so it sees the error left after every retry is spent
	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:          cfg.Webhook.MaxRetries,
			InitialInterval:     cfg.Webhook.InitialInterval,
			MaxInterval:         cfg.Webhook.MaxInterval,
			Multiplier:          cfg.Webhook.Multiplier,
			MaxElapsedTime:      cfg.Webhook.MaxElapsedTime,
			RandomizationFactor: 0.5,
			OnRetryHook: func(retryNum int, delay time.Duration) {
				logger.Infow("retrying message",
					"retry_number", retryNum,
					"max_retries", cfg.Webhook.MaxRetries,
					"delay", delay,
				)
			},
		}.Middleware,
	)

	return &Router{
		router: router,
		dlq:    dlq,
		logger: logger,
		sentry: sentry,
		config: &cfg.Webhook,
	}, nil
}

// AddNoPublishHandler adds a handler that doesn't publish messages.
// Errors that retrying cannot fix are acknowledged instead of retried.
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
			err := handlerFunc(msg)
			if err == nil {
				return nil
			}
			if !shouldRetry(r.logger, err) {
				r.logger.Warnw("dropping message after non retryable error",
					"error", err,
					"correlation_id", middleware.MessageCorrelationID(msg),
					"message_uuid", msg.UUID,
				)
				return nil
			}
			r.sentry.CaptureException(err)
			r.logger.Errorw("handler failed",
				"error", err,
				"correlation_id", middleware.MessageCorrelationID(msg),
				"message_uuid", msg.UUID,
			)
			return err
		},
	)

	for _, mw := range middlewares {
		handler.AddMiddleware(mw)
	}
}

// AddDeadLetterHandler consumes the poison queue. A dead letter is only recorded, an
// operator replays it from the logged payload.
func (r *Router) AddDeadLetterHandler() {
	r.router.AddNoPublisherHandler(
		"webhook_dead_letters",
		deadLetterTopic,
		r.dlq,
		func(msg *message.Message) error {
			handler := msg.Metadata.Get(middleware.PoisonedHandlerKey)
			r.logger.Errorw("webhook delivery given up",
				"message_uuid", msg.UUID,
				"handler", handler,
				"topic", msg.Metadata.Get(middleware.PoisonedTopicKey),
				"reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey),
				"payload", string(msg.Payload),
			)
			r.sentry.CaptureAnomaly("webhook delivery given up", map[string]interface{}{
				"message_uuid": msg.UUID,
				"handler":      handler,
				"reason":       msg.Metadata.Get(middleware.ReasonForPoisonedKey),
			})
			metrics.RecordWebhookDeadLetter(handler)
			return nil
		},
	)
}

// Running is closed once the router has started consuming
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Run starts the router and blocks until ctx is done or Close is called
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting message router")
	return r.router.Run(ctx)
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing message router")
	return r.router.Close()
}
