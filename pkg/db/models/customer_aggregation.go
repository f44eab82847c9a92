package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerAggregation holds running payment statistics per customer.
type CustomerAggregation struct {
	CustomerID       uuid.UUID       `gorm:"column:customer_id;type:uuid;primaryKey"`
	NumberOfPayments int64           `gorm:"column:number_of_payments;not null;default:0"`
	TotalAmountCents int64           `gorm:"column:total_amount_cents;not null;default:0"`
	AverageAmount    decimal.Decimal `gorm:"column:average_amount_cents;type:numeric(18,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomerProductFrequency is the cumulative quantity a customer paid for per product.
type CustomerProductFrequency struct {
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity   int64     `gorm:"column:quantity;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
