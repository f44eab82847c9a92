package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/api/middleware"
	"github.com/norberto-e-888/pos-app/api/responses"
	"github.com/norberto-e-888/pos-app/api/validators"
	internalorders "github.com/norberto-e-888/pos-app/internal/orders"
	"github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

// Service is the slice of the order service the HTTP layer drives.
type Service interface {
	CreateOrder(ctx context.Context, actor auth.Principal, input internalorders.CreateOrderInput) (*models.Order, error)
	AddItem(ctx context.Context, actor auth.Principal, orderID uuid.UUID, item internalorders.ItemInput) (*models.Order, error)
	RemoveItem(ctx context.Context, actor auth.Principal, orderID, productID uuid.UUID) (*models.Order, error)
	UpdateItem(ctx context.Context, actor auth.Principal, orderID uuid.UUID, item internalorders.ItemInput) (*models.Order, error)
	AddShippingAddress(ctx context.Context, actor auth.Principal, orderID uuid.UUID, address models.Address) (*models.Order, error)
	PlaceOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, override bool) (*models.Order, error)
	CancelOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)
	Get(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor auth.Principal, input internalorders.ListInput) (pagination.Page[models.Order], error)
}

type itemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func (r itemRequest) toInput() (internalorders.ItemInput, error) {
	id, err := uuid.Parse(r.ProductID)
	if err != nil {
		return internalorders.ItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid productId")
	}
	return internalorders.ItemInput{ProductID: id, Quantity: r.Quantity}, nil
}

type addressRequest struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
}

func (a addressRequest) toModel() models.Address {
	return models.Address{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip, Country: a.Country}
}

type createOrderRequest struct {
	Items           []itemRequest   `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *addressRequest `json:"shippingAddress,omitempty"`
	CustomerEmail   string          `json:"customerEmail,omitempty" validate:"omitempty,email"`
}

type removeItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
}

type placeOrderRequest struct {
	OverrideIdempotency bool `json:"overrideIdempotency"`
}

// Create opens a DRAFTING order. Admins create in-store orders on behalf of
// the customer named by customerEmail.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := principal(w, r, svc, logg)
		if !ok {
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{CustomerEmail: strings.TrimSpace(payload.CustomerEmail)}
		for _, item := range payload.Items {
			converted, err := item.toInput()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Items = append(input.Items, converted)
		}
		if payload.ShippingAddress != nil {
			address := payload.ShippingAddress.toModel()
			input.ShippingAddress = &address
		}

		order, err := svc.CreateOrder(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payloads.NewOrderSnapshot(*order))
	}
}

// List returns a page of orders. Customers only ever see their own.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := principal(w, r, svc, logg)
		if !ok {
			return
		}

		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]payloads.OrderSnapshot, 0, len(page.Items))
		for _, order := range page.Items {
			items = append(items, payloads.NewOrderSnapshot(order))
		}
		responses.WriteSuccess(w, pagination.Page[payloads.OrderSnapshot]{
			Items: items,
			Page:  page.Page,
			Size:  page.Size,
			Total: page.Total,
		})
	}
}

// Get returns one order. Orders owned by someone else read as not found.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		return svc.Get(r.Context(), actor, orderID)
	})
}

func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		return svc.CancelOrder(r.Context(), actor, orderID)
	})
}

func AddShippingAddress(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddShippingAddress(r.Context(), actor, orderID, payload.toModel())
	})
}

func AddItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		item, err := decodeItem(r)
		if err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), actor, orderID, item)
	})
}

func RemoveItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		var payload removeItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid productId")
		}
		return svc.RemoveItem(r.Context(), actor, orderID, productID)
	})
}

func UpdateItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		item, err := decodeItem(r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateItem(r.Context(), actor, orderID, item)
	})
}

// Place moves a DRAFTING order to PLACED. overrideIdempotency bypasses the
// duplicate-order window.
func Place(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withOrder(svc, logg, func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
		var payload placeOrderRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.PlaceOrder(r.Context(), actor, orderID, payload.OverrideIdempotency)
	})
}

type orderAction func(r *http.Request, actor auth.Principal, orderID uuid.UUID) (*models.Order, error)

func withOrder(svc Service, logg *logger.Logger, action orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := principal(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
			r = r.WithContext(ctx)
		}

		order, err := action(r, actor, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payloads.NewOrderSnapshot(*order))
	}
}

func principal(w http.ResponseWriter, r *http.Request, svc Service, logg *logger.Logger) (auth.Principal, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
		return auth.Principal{}, false
	}
	actor, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return auth.Principal{}, false
	}
	return actor, true
}

func decodeItem(r *http.Request) (internalorders.ItemInput, error) {
	var payload itemRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return internalorders.ItemInput{}, err
	}
	return payload.toInput()
}

func parseListInput(r *http.Request) (internalorders.ListInput, error) {
	var input internalorders.ListInput
	page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, 1<<20)
	if err != nil {
		return input, err
	}
	size, err := validators.ParseQueryInt(r, "size", pagination.DefaultSize, 1, pagination.MaxSize)
	if err != nil {
		return input, err
	}
	status, err := validators.ParseQueryEnum(r, "status", enums.OrderStatus.IsValid)
	if err != nil {
		return input, err
	}
	orderType, err := validators.ParseQueryEnum(r, "type", enums.OrderType.IsValid)
	if err != nil {
		return input, err
	}
	query := r.URL.Query()
	input.Status = status
	input.Type = orderType
	input.SortBy = strings.TrimSpace(query.Get("sortBy"))
	input.SortOrder = strings.TrimSpace(query.Get("sortOrder"))
	input.Page = pagination.Params{Page: page, Size: size}
	return input, nil
}
