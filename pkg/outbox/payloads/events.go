package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// AddressSnapshot is the shipping address as carried on order events.
type AddressSnapshot struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// OrderItemSnapshot is one order line with its captured price.
type OrderItemSnapshot struct {
	ProductID  uuid.UUID `json:"productId"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"price"`
}

// OrderSnapshot is the body of every order.* event.
type OrderSnapshot struct {
	ID              uuid.UUID           `json:"id"`
	CustomerID      uuid.UUID           `json:"customerId"`
	Status          enums.OrderStatus   `json:"status"`
	Type            enums.OrderType     `json:"type"`
	Items           []OrderItemSnapshot `json:"items"`
	TotalCents      int64               `json:"total"`
	ShippingAddress *AddressSnapshot    `json:"shippingAddress,omitempty"`
	Hash            *string             `json:"hash,omitempty"`
	PlacedAt        *time.Time          `json:"placedAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// ProductSnapshot names a product referenced by an order event.
type ProductSnapshot struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
}

// OrderPlacedEvent adds the catalog view of the ordered products so payment can
// build line items without calling back.
type OrderPlacedEvent struct {
	OrderSnapshot
	Products map[string]ProductSnapshot `json:"products"`
}

// UserSignedUpEvent is emitted when the directory creates a user.
type UserSignedUpEvent struct {
	ID    uuid.UUID  `json:"id"`
	Email string     `json:"email"`
	Role  enums.Role `json:"role"`
}

// PaymentMetadata carries the order reference the payment service echoes back.
type PaymentMetadata struct {
	OrderID string `json:"orderId"`
}

// PaymentCheckoutEvent is the inbound payment.checkout-completed / -failed body.
type PaymentCheckoutEvent struct {
	ID          string          `json:"id"`
	Metadata    PaymentMetadata `json:"metadata"`
	AmountTotal int64           `json:"amount_total,omitempty"`
	Currency    string          `json:"currency,omitempty"`
}

// NewOrderSnapshot copies the order into its event shape.
func NewOrderSnapshot(order models.Order) OrderSnapshot {
	items := make([]OrderItemSnapshot, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemSnapshot{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}
	snapshot := OrderSnapshot{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Type:       order.Type,
		Items:      items,
		TotalCents: order.TotalCents,
		Hash:       order.Hash,
		PlacedAt:   order.PlacedAt,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	if !order.ShippingAddress.IsZero() {
		addr := order.ShippingAddress
		snapshot.ShippingAddress = &AddressSnapshot{
			Street:  addr.Street,
			City:    addr.City,
			State:   addr.State,
			Zip:     addr.Zip,
			Country: addr.Country,
		}
	}
	return snapshot
}
