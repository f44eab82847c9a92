package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusDrafting, OrderStatusPlaced, true},
		{OrderStatusDrafting, OrderStatusCancelled, true},
		{OrderStatusFailedPayment, OrderStatusPlaced, true},
		{OrderStatusPlaced, OrderStatusProcessing, true},
		{OrderStatusPlaced, OrderStatusInStoreCompleted, true},
		{OrderStatusPlaced, OrderStatusFailedPayment, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusFailedShipping, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusFailedDelivery, true},
		{OrderStatusFailedShipping, OrderStatusFailedPayment, true},
		{OrderStatusPlaced, OrderStatusCancelled, false},
		{OrderStatusProcessing, OrderStatusPlaced, false},
		{OrderStatusFailedPayment, OrderStatusFailedPayment, false},
		{OrderStatusDelivered, OrderStatusFailedPayment, false},
		{OrderStatusCancelled, OrderStatusPlaced, false},
		{OrderStatusInStoreCompleted, OrderStatusFailedShipping, false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, status := range validOrderStatuses {
		if !status.IsTerminal() {
			continue
		}
		for _, target := range validOrderStatuses {
			assert.Falsef(t, CanTransition(status, target), "terminal %s must not reach %s", status, target)
		}
	}
}

func TestParseEnums(t *testing.T) {
	status, err := ParseOrderStatus("PLACED")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusPlaced, status)

	_, err = ParseOrderStatus("placed")
	assert.Error(t, err)

	role, err := ParseRole("admin")
	assert.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseProductCategory("toys")
	assert.Error(t, err)

	typ, err := ParseOrderType("in-store")
	assert.NoError(t, err)
	assert.Equal(t, OrderTypeInStore, typ)

	ev, err := ParseEventType("payment.checkout-failed")
	assert.NoError(t, err)
	assert.Equal(t, EventPaymentCheckoutFailed, ev)
}
