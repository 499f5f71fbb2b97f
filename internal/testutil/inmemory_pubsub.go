package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/membership/internal/pubsub"
	"github.com/flexprice/membership/internal/types"
)

var _ pubsub.PubSub = (*InMemoryPubSub)(nil)

// InMemoryPubSub records every published message per topic.
// Subscribers receive the backlog followed by new messages.
type InMemoryPubSub struct {
	mu          sync.Mutex
	published   map[string][]*message.Message
	subscribers map[string][]chan *message.Message
}

func NewInMemoryPubSub() *InMemoryPubSub {
	return &InMemoryPubSub{
		published:   make(map[string][]*message.Message),
		subscribers: make(map[string][]chan *message.Message),
	}
}

func (ps *InMemoryPubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.published[topic] = append(ps.published[topic], msg)
	for _, ch := range ps.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (ps *InMemoryPubSub) Subscribe(_ context.Context, topic string) (<-chan *message.Message, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	backlog := ps.published[topic]
	ch := make(chan *message.Message, len(backlog)+100)
	for _, msg := range backlog {
		ch <- msg
	}
	ps.subscribers[topic] = append(ps.subscribers[topic], ch)
	return ch, nil
}

func (ps *InMemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, chans := range ps.subscribers {
		for _, ch := range chans {
			close(ch)
		}
	}
	ps.subscribers = make(map[string][]chan *message.Message)
	return nil
}

// Messages returns a copy of what was published to topic
func (ps *InMemoryPubSub) Messages(topic string) []*message.Message {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]*message.Message(nil), ps.published[topic]...)
}

// Reset forgets everything published so far
func (ps *InMemoryPubSub) Reset() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.published = make(map[string][]*message.Message)
}

// WebhookEvents decodes the webhook events published to topic, in publish order
func (ps *InMemoryPubSub) WebhookEvents(topic string) []*types.WebhookEvent {
	var events []*types.WebhookEvent
	for _, msg := range ps.Messages(topic) {
		var event types.WebhookEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			continue
		}
		events = append(events, &event)
	}
	return events
}
