package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/internal/inventory"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveHeader(ctx context.Context, order *models.Order) error
	InsertItem(ctx context.Context, item *models.OrderItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ExistsPlacedWithHash(ctx context.Context, hash string, since time.Time, excludeID uuid.UUID) (bool, error)
	List(ctx context.Context, filters ListFilters, sort pagination.Sort, page pagination.Params) ([]models.Order, int64, error)
}

// ListFilters narrows an order listing. A nil CustomerID lists every customer.
type ListFilters struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
	Type       *enums.OrderType
}

type txRunner = db.TxRunner

type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Release(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Commit(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type productCatalog interface {
	FindByIDsTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type userDirectory interface {
	CreateOrGet(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
}

type processedMarker interface {
	MarkProcessedTx(tx *gorm.DB, consumer, key string) (bool, error)
}
