package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

// Repository persists catalog rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID returns NOT_FOUND when the product does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// ExistsByName reports whether a product already uses name.
func (r *Repository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product name")
	}
	return count > 0, nil
}

// FindByIDs loads products keyed by id. Missing ids are simply absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Query lists products filtered by category, sorted and paginated.
func (r *Repository) Query(ctx context.Context, category *enums.ProductCategory, sort pagination.Sort, page pagination.Params) ([]models.Product, int64, error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if category != nil {
		q = q.Where("category = ?", *category)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}

	var rows []models.Product
	err := q.Order(sort.Clause()).Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query products")
	}
	return rows, total, nil
}

// FindByIDsTx is FindByIDs within the caller's transaction.
func (r *Repository) FindByIDsTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return r.WithTx(tx).FindByIDs(ctx, ids)
}
