// Package broker defines the transport-neutral surface the relay publishes through and
// consumers receive from. Pub/Sub and Kafka adapters live in their own packages.
package broker

import (
	"context"
	"errors"
)

// Attribute names set on every relayed message.
const (
	AttrEventID             = "event_id"
	AttrEventType           = "event_type"
	AttrExchange            = "exchange"
	AttrRoutingKey          = "routing_key"
	AttrAggregateCollection = "aggregate_collection"
	AttrAggregateID         = "aggregate_id"
	AttrCreatedAt           = "created_at"
)

// ErrPublisherClosed is returned by adapters after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Message is one broker message. DeliveryAttempt is 1-based and zero when the broker
// does not report it.
type Message struct {
	ID              string
	Data            []byte
	Attributes      map[string]string
	OrderingKey     string
	DeliveryAttempt int
}

// Attr returns an attribute or "".
func (m Message) Attr(name string) string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[name]
}

// Publisher sends a message and returns once the broker acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

// Handler processes one delivery. Returning nil acks it; an error asks the broker to
// redeliver.
type Handler func(ctx context.Context, msg Message) error

// Subscriber feeds deliveries from a subscription to a handler until ctx is done.
type Subscriber interface {
	Receive(ctx context.Context, subscription string, handler Handler) error
}
