package webhook

import (
	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/pubsub"
	"github.com/flexprice/membership/internal/pubsub/memory"
	"github.com/flexprice/membership/internal/types"
	"github.com/flexprice/membership/internal/webhook/handler"
	"github.com/flexprice/membership/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides all webhook-related dependencies
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		publisher.NewPublisher,
		handler.NewHandler,
		NewWebhookService,
	),
)

func providePubSub(cfg *config.Configuration, logger *logger.Logger) pubsub.PubSub {
	switch cfg.Webhook.PubSub {
	case types.MemoryPubSub, "":
		return memory.NewPubSub(logger)
	}
	panic("unsupported pubsub type " + string(cfg.Webhook.PubSub))
}
