package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// Order is the aggregate root driven by the order state machine.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID      uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index:ix_orders_customer"`
	Status          enums.OrderStatus `gorm:"column:status;not null"`
	Type            enums.OrderType   `gorm:"column:type;not null"`
	ShippingAddress Address           `gorm:"embedded;embeddedPrefix:shipping_"`
	TotalCents      int64             `gorm:"column:total_cents;not null;default:0"`
	Hash            *string           `gorm:"column:hash;index:ix_orders_hash_placed_at,priority:1"`
	PlacedAt        *time.Time        `gorm:"column:placed_at;index:ix_orders_hash_placed_at,priority:2"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// RecomputeTotal keeps total equal to the sum of price snapshots times quantities.
func (o *Order) RecomputeTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.PriceCents * int64(item.Quantity)
	}
	o.TotalCents = total
}

// FindItem returns the index of the line for productID, or -1.
func (o *Order) FindItem(productID uuid.UUID) int {
	for i, item := range o.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Address is stored inline on the order. An all-empty address means none was given.
type Address struct {
	Street  string `gorm:"column:street;not null;default:''" json:"street"`
	City    string `gorm:"column:city;not null;default:''" json:"city"`
	State   string `gorm:"column:state;not null;default:''" json:"state"`
	Zip     string `gorm:"column:zip;not null;default:''" json:"zip"`
	Country string `gorm:"column:country;not null;default:''" json:"country"`
}

func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.Zip) == "" &&
		strings.TrimSpace(a.Country) == ""
}

// OrderItem is one line of an order with the price captured when it was added.
type OrderItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_items_product,priority:1"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_order_items_product,priority:2"`
	Position   int       `gorm:"column:position;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
