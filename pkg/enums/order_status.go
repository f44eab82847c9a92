package enums

import "fmt"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDrafting         OrderStatus = "DRAFTING"
	OrderStatusPlaced           OrderStatus = "PLACED"
	OrderStatusProcessing       OrderStatus = "PROCESSING"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusFailedDelivery   OrderStatus = "FAILED_DELIVERY"
	OrderStatusInStoreCompleted OrderStatus = "IN_STORE_COMPLETED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusFailedPayment    OrderStatus = "FAILED_PAYMENT"
	OrderStatusFailedShipping   OrderStatus = "FAILED_SHIPPING"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDrafting,
	OrderStatusPlaced,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusFailedDelivery,
	OrderStatusInStoreCompleted,
	OrderStatusCancelled,
	OrderStatusFailedPayment,
	OrderStatusFailedShipping,
}

// orderTransitions lists the forward edges of the order state machine. Downstream
// failure edges (FAILED_PAYMENT, FAILED_SHIPPING) are added for every non-terminal
// state in init.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDrafting:       {OrderStatusPlaced, OrderStatusCancelled},
	OrderStatusPlaced:         {OrderStatusProcessing, OrderStatusInStoreCompleted},
	OrderStatusProcessing:     {OrderStatusShipped},
	OrderStatusShipped:        {OrderStatusDelivered, OrderStatusFailedDelivery},
	OrderStatusFailedPayment:  {OrderStatusPlaced},
	OrderStatusFailedShipping: {},
}

func init() {
	for from, targets := range orderTransitions {
		for _, failure := range []OrderStatus{OrderStatusFailedPayment, OrderStatusFailedShipping} {
			if from == failure {
				continue
			}
			targets = append(targets, failure)
		}
		orderTransitions[from] = targets
	}
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusInStoreCompleted, OrderStatusFailedDelivery:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// OrderType distinguishes admin-driven in-store sales from customer online orders.
type OrderType string

const (
	OrderTypeInStore OrderType = "in-store"
	OrderTypeOnline  OrderType = "online"
)

func (t OrderType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known OrderType.
func (t OrderType) IsValid() bool {
	return t == OrderTypeInStore || t == OrderTypeOnline
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	t := OrderType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid order type %q", value)
	}
	return t, nil
}
