package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// LockByID re-reads the order with a row lock so concurrent mutations of the same order
// serialise. sqlite ignores the locking clause and serialises writers on its own.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(q *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orderNotFound(id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

// SaveHeader writes the order's own columns. Items are persisted through the item
// helpers.
func (r *repository) SaveHeader(ctx context.Context, order *models.Order) error {
	addr := order.ShippingAddress
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":           order.Status,
			"total_cents":      order.TotalCents,
			"hash":             order.Hash,
			"placed_at":        order.PlacedAt,
			"shipping_street":  addr.Street,
			"shipping_city":    addr.City,
			"shipping_state":   addr.State,
			"shipping_zip":     addr.Zip,
			"shipping_country": addr.Country,
			"updated_at":       order.UpdatedAt,
		}).Error
}

func (r *repository) InsertItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

func (r *repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.OrderItem{}, "id = ?", itemID).Error
}

// ExistsPlacedWithHash reports whether another order with the fingerprint was placed at
// or after since.
func (r *repository) ExistsPlacedWithHash(ctx context.Context, hash string, since time.Time, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("hash = ? AND placed_at >= ? AND id <> ?", hash, since, excludeID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order fingerprint")
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, sort pagination.Sort, page pagination.Params) ([]models.Order, int64, error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.CustomerID != nil {
		q = q.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Type != nil {
		q = q.Where("type = ?", *filters.Type)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}

	var rows []models.Order
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order(sort.Clause()).
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, total, nil
}

func orderNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order "+id.String()+" not found")
}
