package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Description string
	PriceCents  int64
	Category    enums.ProductCategory
	Stock       int
}

// QueryInput filters and orders a product listing.
type QueryInput struct {
	Category  *enums.ProductCategory
	SortBy    string
	SortOrder string
	Page      pagination.Params
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"price":     "price_cents",
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdder interface {
	AddStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
}

// Service manages the catalog. Stock counters are only changed through the ledger.
type Service struct {
	tx     txRunner
	repo   *Repository
	ledger stockAdder
	logg   *logger.Logger
}

type ServiceParams struct {
	Tx         txRunner
	Repository *Repository
	Ledger     stockAdder
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("product repository required")
	}
	if params.Ledger == nil {
		return nil, errors.New("inventory ledger required")
	}
	return &Service{tx: params.Tx, repo: params.Repository, ledger: params.Ledger, logg: params.Logger}, nil
}

// CreateProduct adds a catalog entry. Names are unique.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:              input.Name,
		Description:       strings.TrimSpace(input.Description),
		PriceCents:        input.PriceCents,
		Category:          input.Category,
		AvailableQuantity: input.Stock,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.ExistsByName(ctx, input.Name)
		if err != nil {
			return err
		}
		if exists {
			return duplicateName(input.Name)
		}
		return repo.Create(ctx, product)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicateName(input.Name)
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": product.ID, "category": product.Category})
		s.logg.Info(logCtx, "product created")
	}
	return product, nil
}

// AddStock restocks a product and returns its new state.
func (s *Service) AddStock(ctx context.Context, productID uuid.UUID, quantity int) (*models.Product, error) {
	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.AddStock(ctx, tx, productID, quantity); err != nil {
			return err
		}
		loaded, err := s.repo.WithTx(tx).FindByID(ctx, productID)
		if err != nil {
			return err
		}
		product = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": productID, "quantity": quantity})
		s.logg.Info(logCtx, "product restocked")
	}
	return product, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return s.repo.FindByID(ctx, productID)
}

// Query lists products. Sorting defaults to newest first.
func (s *Service) Query(ctx context.Context, input QueryInput) (pagination.Page[models.Product], error) {
	if input.Category != nil && !input.Category.IsValid() {
		return pagination.Page[models.Product]{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown category %q", *input.Category))
	}
	sort, err := pagination.ParseSort(input.SortBy, input.SortOrder, sortColumns, "createdAt")
	if err != nil {
		return pagination.Page[models.Product]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort")
	}
	rows, total, err := s.repo.Query(ctx, input.Category, sort, input.Page)
	if err != nil {
		return pagination.Page[models.Product]{}, err
	}
	return pagination.NewPage(rows, input.Page, total), nil
}

func validateCreate(input CreateProductInput) error {
	switch {
	case input.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case input.PriceCents < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be at least 1 cent")
	case !input.Category.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown category %q", input.Category))
	case input.Stock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	return nil
}

func duplicateName(name string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("product with name %q already exists", name))
}
