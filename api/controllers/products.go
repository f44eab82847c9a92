package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/api/responses"
	"github.com/norberto-e-888/pos-app/api/validators"
	productsvc "github.com/norberto-e-888/pos-app/internal/products"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

// ProductService is the catalog surface exposed over HTTP.
type ProductService interface {
	CreateProduct(ctx context.Context, input productsvc.CreateProductInput) (*models.Product, error)
	AddStock(ctx context.Context, productID uuid.UUID, quantity int) (*models.Product, error)
	Query(ctx context.Context, input productsvc.QueryInput) (pagination.Page[models.Product], error)
}

type createProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"required,min=1"`
	Category    string `json:"category" validate:"required,category"`
	Stock       int    `json:"stock" validate:"min=0"`
}

type addStockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CreateProduct adds a catalog entry (admin).
func CreateProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The category tag already accepted it, so this only normalizes casing.
		category, _ := enums.ParseProductCategory(payload.Category)
		product, err := svc.CreateProduct(r.Context(), productsvc.CreateProductInput{
			Name:        payload.Name,
			Description: payload.Description,
			PriceCents:  payload.Price,
			Category:    category,
			Stock:       payload.Stock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AddProductStock increases a product's available quantity (admin).
func AddProductStock(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.AddStock(r.Context(), productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// QueryProducts lists the catalog with an optional category filter.
func QueryProducts(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		size, err := validators.ParseQueryInt(r, "size", pagination.DefaultSize, 1, pagination.MaxSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := validators.ParseQueryEnum(r, "category", enums.ProductCategory.IsValid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.Query(r.Context(), productsvc.QueryInput{
			Category:  category,
			SortBy:    strings.TrimSpace(query.Get("sortBy")),
			SortOrder: strings.TrimSpace(query.Get("sortOrder")),
			Page:      pagination.Params{Page: page, Size: size},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
