package webhook

import (
	"context"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	pubsubRouter "github.com/flexprice/membership/internal/pubsub/router"
	"github.com/flexprice/membership/internal/svix"
	"github.com/flexprice/membership/internal/webhook/handler"
	"github.com/flexprice/membership/internal/webhook/publisher"
)

// WebhookService owns the lifecycle of webhook delivery
type WebhookService struct {
	config    *config.Configuration
	publisher publisher.WebhookPublisher
	handler   handler.Handler
	svix      *svix.Client
	logger    *logger.Logger
}

func NewWebhookService(
	cfg *config.Configuration,
	publisher publisher.WebhookPublisher,
	h handler.Handler,
	svixClient *svix.Client,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		svix:      svixClient,
		logger:    l,
	}
}

// RegisterHandler attaches delivery to the router when webhooks are enabled
func (s *WebhookService) RegisterHandler(ctx context.Context, router *pubsubRouter.Router) error {
	if !s.config.Webhook.Enabled {
		s.logger.Info("webhook delivery disabled")
		return nil
	}

	if err := s.svix.EnsureApplication(ctx); err != nil {
		return err
	}

	s.handler.RegisterHandler(router)
	s.logger.Infow("webhook delivery registered", "topic", s.config.Webhook.Topic)
	return nil
}

// Stop closes the publisher once the router has drained
func (s *WebhookService) Stop() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close webhook publisher", "error", err)
		return err
	}
	s.logger.Info("webhook service stopped")
	return nil
}
