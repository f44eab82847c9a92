package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.EventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for consumers.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// NewPaymentDecoders registers the inbound payment events the order service consumes.
func NewPaymentDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	decodeCheckout := func(payload json.RawMessage) (interface{}, error) {
		var event payloads.PaymentCheckoutEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		if event.Metadata.OrderID == "" {
			return nil, fmt.Errorf("metadata.orderId is required")
		}
		return &event, nil
	}
	reg.Register(enums.EventPaymentCheckoutCompleted, 1, decodeCheckout)
	reg.Register(enums.EventPaymentCheckoutFailed, 1, decodeCheckout)
	return reg
}

// Register stores a decoder for the given event type and version.
func (r *DecoderRegistry) Register(eventType enums.EventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.EventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}
