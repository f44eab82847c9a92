package enums

import "fmt"

// EventType names every message the service emits or consumes.
type EventType string

const (
	EventOrderCreated          EventType = "order.created"
	EventOrderCancelled        EventType = "order.cancelled"
	EventOrderPlaced           EventType = "order.placed"
	EventOrderProcessing       EventType = "order.processing"
	EventOrderInStoreCompleted EventType = "order.in-store-completed"
	EventOrderPaymentFailed    EventType = "order.payment-failed"
	EventAuthSignUp            EventType = "auth.sign-up"

	EventPaymentCheckoutCompleted EventType = "payment.checkout-completed"
	EventPaymentCheckoutFailed    EventType = "payment.checkout-failed"
)

var validEventTypes = []EventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderPlaced,
	EventOrderProcessing,
	EventOrderInStoreCompleted,
	EventOrderPaymentFailed,
	EventAuthSignUp,
	EventPaymentCheckoutCompleted,
	EventPaymentCheckoutFailed,
}

func (e EventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventType.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts raw input into an EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// Exchange is the logical topic a record is published to.
type Exchange string

const (
	ExchangeOrder   Exchange = "order"
	ExchangeAuth    Exchange = "auth"
	ExchangePayment Exchange = "payment"
)

var validExchanges = []Exchange{ExchangeOrder, ExchangeAuth, ExchangePayment}

func (e Exchange) String() string {
	return string(e)
}

// IsValid reports whether the value is a known Exchange.
func (e Exchange) IsValid() bool {
	for _, candidate := range validExchanges {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseExchange converts raw input into an Exchange.
func ParseExchange(value string) (Exchange, error) {
	for _, candidate := range validExchanges {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid exchange %q", value)
}

// AggregateCollection names the table an outbox record describes.
type AggregateCollection string

const (
	AggregateOrders AggregateCollection = "orders"
	AggregateUsers  AggregateCollection = "users"
)
