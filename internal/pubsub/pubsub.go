package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher publishes messages to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

// Subscriber consumes messages from a topic. Its method set matches
// watermill's message.Subscriber so it can feed a router directly.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub combines both Publisher and Subscriber interfaces
type PubSub interface {
	Publisher
	Subscriber
}

// watermillPublisher adapts a Publisher to message.Publisher for router
// middleware such as the poison queue
type watermillPublisher struct {
	pub Publisher
}

func NewWatermillPublisher(pub Publisher) message.Publisher {
	return &watermillPublisher{pub: pub}
}

func (w *watermillPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		ctx := msg.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := w.pub.Publish(ctx, topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *watermillPublisher) Close() error {
	return nil
}
