package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/numbrly/portal/internal/pubsub"
	"github.com/numbrly/portal/internal/types"
)

var _ pubsub.PubSub = (*InMemoryPubSub)(nil)

// InMemoryPubSub records every published message and fans it out to subscribers
type InMemoryPubSub struct {
	subscribers map[string][]chan *message.Message
	messages    map[string][]*message.Message
	mu          sync.RWMutex

	// PublishErr, when set, fails every Publish
	PublishErr error
}

// NewInMemoryPubSub creates a new instance of InMemoryPubSub
func NewInMemoryPubSub() *InMemoryPubSub {
	return &InMemoryPubSub{
		subscribers: make(map[string][]chan *message.Message),
		messages:    make(map[string][]*message.Message),
	}
}

// Publish implements pubsub.Publisher interface
func (ps *InMemoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.PublishErr != nil {
		return ps.PublishErr
	}

	ps.messages[topic] = append(ps.messages[topic], msg)
	for _, ch := range ps.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe implements pubsub.Subscriber interface. Messages published
// before the subscription are replayed.
func (ps *InMemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan *message.Message, 100)
	ps.subscribers[topic] = append(ps.subscribers[topic], ch)

	if messages, ok := ps.messages[topic]; ok {
		backlog := append([]*message.Message(nil), messages...)
		go func() {
			for _, msg := range backlog {
				select {
				case ch <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return ch, nil
}

// Close implements pubsub.PubSub interface
func (ps *InMemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, subscribers := range ps.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
	}
	ps.subscribers = make(map[string][]chan *message.Message)
	ps.messages = make(map[string][]*message.Message)
	return nil
}

// GetMessages returns all messages published to a topic
func (ps *InMemoryPubSub) GetMessages(topic string) []*message.Message {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return append([]*message.Message(nil), ps.messages[topic]...)
}

// LifecycleEvents decodes the events published to topic in order
func (ps *InMemoryPubSub) LifecycleEvents(topic string) []*types.LifecycleEvent {
	var out []*types.LifecycleEvent
	for _, msg := range ps.GetMessages(topic) {
		var e types.LifecycleEvent
		if json.Unmarshal(msg.Payload, &e) == nil {
			out = append(out, &e)
		}
	}
	return out
}

// EventNames lists the names of the lifecycle events published to topic
func (ps *InMemoryPubSub) EventNames(topic string) []string {
	var names []string
	for _, e := range ps.LifecycleEvents(topic) {
		names = append(names, e.EventName)
	}
	return names
}

// PendingRefunds decodes the refunds queued on topic
func (ps *InMemoryPubSub) PendingRefunds(topic string) []*types.RefundPending {
	var out []*types.RefundPending
	for _, msg := range ps.GetMessages(topic) {
		var r types.RefundPending
		if json.Unmarshal(msg.Payload, &r) == nil {
			out = append(out, &r)
		}
	}
	return out
}

// ClearMessages clears all stored messages
func (ps *InMemoryPubSub) ClearMessages() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.messages = make(map[string][]*message.Message)
}
