package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// Product is a catalog entry together with its stock counters. Stock columns are only
// touched by the inventory ledger.
type Product struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name              string                `gorm:"column:name;not null;uniqueIndex:ux_products_name" json:"name"`
	Description       string                `gorm:"column:description;not null;default:''" json:"description"`
	PriceCents        int64                 `gorm:"column:price_cents;not null" json:"priceCents"`
	Category          enums.ProductCategory `gorm:"column:category;not null" json:"category"`
	AvailableQuantity int                   `gorm:"column:available_quantity;not null;default:0" json:"availableQuantity"`
	ReservedQuantity  int                   `gorm:"column:reserved_quantity;not null;default:0" json:"reservedQuantity"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
