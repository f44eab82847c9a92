package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its exchange, aggregate and payload schema.
type EventDescriptor struct {
	EventType      enums.EventType
	Exchange       enums.Exchange
	Aggregate      enums.AggregateCollection
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Topic      string
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry is the route table from exchanges to broker topics, plus the schema of
// every event the service publishes.
type EventRegistry struct {
	topics  map[enums.Exchange]string
	entries map[enums.EventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[enums.Exchange]string{
		enums.ExchangeOrder: strings.TrimSpace(cfg.OrdersTopic),
		enums.ExchangeAuth:  strings.TrimSpace(cfg.AuthTopic),
	}
	for exchange, topic := range topics {
		if topic == "" {
			return nil, fmt.Errorf("topic for exchange %s is required", exchange)
		}
	}

	reg := &EventRegistry{
		topics:  topics,
		entries: make(map[enums.EventType]EventDescriptor),
	}
	for _, eventType := range []enums.EventType{
		enums.EventOrderCreated,
		enums.EventOrderCancelled,
		enums.EventOrderProcessing,
		enums.EventOrderInStoreCompleted,
		enums.EventOrderPaymentFailed,
	} {
		reg.register(EventDescriptor{
			EventType:      eventType,
			Exchange:       enums.ExchangeOrder,
			Aggregate:      enums.AggregateOrders,
			PayloadFactory: func() interface{} { return &payloads.OrderSnapshot{} },
		})
	}
	reg.register(EventDescriptor{
		EventType:      enums.EventOrderPlaced,
		Exchange:       enums.ExchangeOrder,
		Aggregate:      enums.AggregateOrders,
		PayloadFactory: func() interface{} { return &payloads.OrderPlacedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventAuthSignUp,
		Exchange:       enums.ExchangeAuth,
		Aggregate:      enums.AggregateUsers,
		PayloadFactory: func() interface{} { return &payloads.UserSignedUpEvent{} },
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics lists every topic the registry routes to.
func (r *EventRegistry) Topics() []string {
	out := make([]string, 0, len(r.topics))
	for _, topic := range r.topics {
		out = append(out, topic)
	}
	return out
}

// TopicFor returns the broker topic bound to an exchange.
func (r *EventRegistry) TopicFor(exchange enums.Exchange) (string, bool) {
	topic, ok := r.topics[exchange]
	return topic, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.Exchange != event.Exchange {
		return nil, NewNonRetryableError(fmt.Errorf("exchange mismatch: expected %s got %s", desc.Exchange, event.Exchange))
	}
	topic, ok := r.topics[event.Exchange]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("no topic bound to exchange %s", event.Exchange))
	}
	if event.AggregateCollection != string(desc.Aggregate) {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.Aggregate, event.AggregateCollection))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload.RawMessage())
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Topic:      topic,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
