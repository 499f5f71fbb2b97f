package handler

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/httpclient"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/pubsub"
	pubsubRouter "github.com/flexprice/membership/internal/pubsub/router"
	"github.com/flexprice/membership/internal/svix"
	"github.com/flexprice/membership/internal/types"
	"github.com/flexprice/membership/internal/webhook/dto"
	"github.com/samber/lo"
)

// Handler delivers webhook events consumed from the pub/sub topic
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub     pubsub.PubSub
	config     *config.Webhook
	client     httpclient.Client
	logger     *logger.Logger
	svixClient *svix.Client
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
	svixClient *svix.Client,
) (Handler, error) {
	return &handler{
		pubSub:     pubSub,
		config:     &cfg.Webhook,
		client:     client,
		logger:     logger,
		svixClient: svixClient,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"entitlement_webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// processMessage delivers a single webhook message. Returning an error hands
// the message back to the router for retry.
func (h *handler) processMessage(msg *message.Message) error {
	ctx := msg.Context()

	var event types.WebhookEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal webhook event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// retrying cannot fix a malformed message
		return nil
	}

	ctx = types.SetAccountID(ctx, event.AccountID)
	ctx = types.SetUserID(ctx, event.UserID)
	if requestID := msg.Metadata.Get("request_id"); requestID != "" {
		ctx = types.SetRequestID(ctx, requestID)
	}

	if lo.Contains(h.config.ExcludedEvents, event.EventName) {
		h.logger.Debugw("webhook event excluded",
			"event", event.EventName,
			"event_id", event.ID,
		)
		return nil
	}

	body, err := json.Marshal(dto.Envelope{
		ID:        event.ID,
		EventName: event.EventName,
		AccountID: event.AccountID,
		Timestamp: event.Timestamp,
		Data:      event.Payload,
	})
	if err != nil {
		h.logger.Errorw("failed to build webhook body", "error", err, "event_id", event.ID)
		return nil
	}

	if h.svixClient.Enabled() {
		return h.processMessageSvix(ctx, &event, body)
	}
	return h.processMessageNative(ctx, &event, body)
}

func (h *handler) processMessageSvix(ctx context.Context, event *types.WebhookEvent, body []byte) error {
	if err := h.svixClient.SendMessage(ctx, event.EventName, event.ID, body); err != nil {
		h.logger.WithContext(ctx).Errorw("failed to send webhook via svix",
			"error", err,
			"event_id", event.ID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.WithContext(ctx).Infow("webhook sent via svix",
		"event_id", event.ID,
		"event", event.EventName,
	)
	return nil
}

func (h *handler) processMessageNative(ctx context.Context, event *types.WebhookEvent, body []byte) error {
	if h.config.Endpoint == "" {
		h.logger.Debugw("no webhook endpoint configured, skipping",
			"event_id", event.ID,
			"event", event.EventName,
		)
		return nil
	}

	headers := lo.Assign(h.config.Headers, map[string]string{
		types.HeaderIdempotencyKey: event.ID,
	})

	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  "POST",
		URL:     h.config.Endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		h.logger.WithContext(ctx).Errorw("failed to send webhook",
			"error", err,
			"event_id", event.ID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.WithContext(ctx).Infow("webhook sent",
		"event_id", event.ID,
		"event", event.EventName,
		"status_code", resp.StatusCode,
	)
	return nil
}
