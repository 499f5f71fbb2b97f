package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/pubsub"
)

// outputBuffer bounds how many undelivered webhook events one subscriber may lag behind
const outputBuffer = 100

// PubSub is the in-process transport between the webhook publisher and its delivery handler
type PubSub struct {
	channel *gochannel.GoChannel
	logger  *logger.Logger
}

var _ pubsub.PubSub = (*PubSub)(nil)

func NewPubSub(logger *logger.Logger) pubsub.PubSub {
	return &PubSub{
		channel: gochannel.NewGoChannel(
			gochannel.Config{
				// events published before the router subscribes are replayed on subscribe
				Persistent:          true,
				OutputChannelBuffer: outputBuffer,
			},
			logger.GetWatermillLogger(),
		),
		logger: logger,
	}
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	if err := p.channel.Publish(topic, msg); err != nil {
		p.logger.Errorw("failed to publish message", "topic", topic, "message_uuid", msg.UUID, "error", err)
		return err
	}
	return nil
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.logger.Debugw("subscribing to topic", "topic", topic)
	return p.channel.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	return p.channel.Close()
}
