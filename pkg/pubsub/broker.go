package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/norberto-e-888/pos-app/pkg/broker"
)

// Broker adapts the Pub/Sub client to broker.Publisher and broker.Subscriber.
// Publishers are cached per topic with message ordering enabled so that events of one
// aggregate arrive in the order they were relayed.
type Broker struct {
	client *Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
	closed     bool
}

func NewBroker(client *Client) *Broker {
	return &Broker{client: client, publishers: make(map[string]*pubsub.Publisher)}
}

func (b *Broker) publisher(topic string) (*pubsub.Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, broker.ErrPublisherClosed
	}
	if pub, ok := b.publishers[topic]; ok {
		return pub, nil
	}
	pub := b.client.Publisher(topic)
	if pub == nil {
		return nil, fmt.Errorf("publisher not configured for topic %s", topic)
	}
	pub.EnableMessageOrdering = true
	b.publishers[topic] = pub
	return pub, nil
}

// Publish blocks until the server acknowledged the message.
func (b *Broker) Publish(ctx context.Context, topic string, msg broker.Message) error {
	pub, err := b.publisher(topic)
	if err != nil {
		return err
	}
	result := pub.Publish(ctx, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.OrderingKey,
	})
	if _, err := result.Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			// A failed ordered publish pauses the key until resumed.
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

// Receive streams deliveries to handler, acking on nil and nacking on error.
func (b *Broker) Receive(ctx context.Context, subscription string, handler broker.Handler) error {
	sub := b.client.Subscription(subscription)
	if sub == nil {
		return fmt.Errorf("subscription %q not configured", subscription)
	}
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		attempt := 0
		if m.DeliveryAttempt != nil {
			attempt = *m.DeliveryAttempt
		}
		err := handler(ctx, broker.Message{
			ID:              m.ID,
			Data:            m.Data,
			Attributes:      m.Attributes,
			OrderingKey:     m.OrderingKey,
			DeliveryAttempt: attempt,
		})
		if err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

// Close flushes and stops every cached publisher.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, pub := range b.publishers {
		pub.Stop()
		delete(b.publishers, topic)
	}
	if b.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return b.client.Close()
}
