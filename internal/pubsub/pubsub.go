package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher is the producing side used by the webhook publisher
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

// Subscriber is the consuming side the message router reads from
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub is a transport that both publishes and subscribes, such as the in-memory channel
type PubSub interface {
	Publisher
	Subscriber
}
