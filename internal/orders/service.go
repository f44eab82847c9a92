// Package orders drives the order state machine. Every transition that other services
// care about is written together with its outbox event.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/internal/inventory"
	"github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

const (
	defaultIdempotencyWindow = 10 * time.Minute

	// PaymentOutcomeConsumer is the processed_messages consumer name for payment results.
	PaymentOutcomeConsumer = "orders.payment-outcome"
)

// ErrAlreadyApplied reports a payment outcome that was recorded by an earlier delivery.
var ErrAlreadyApplied = errors.New("payment outcome already applied")

// PaymentOutcome is the result reported by the payment service.
type PaymentOutcome string

const (
	PaymentCompleted PaymentOutcome = "completed"
	PaymentFailed    PaymentOutcome = "failed"
)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput holds the validated payload to create an order. CustomerEmail is
// only used by admins, who create in-store orders on behalf of a customer.
type CreateOrderInput struct {
	Items           []ItemInput
	ShippingAddress *models.Address
	CustomerEmail   string
}

// ListInput filters and orders a listing.
type ListInput struct {
	Status    *enums.OrderStatus
	Type      *enums.OrderType
	SortBy    string
	SortOrder string
	Page      pagination.Params
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"total":     "total_cents",
}

type placement struct {
	order    *models.Order
	products map[uuid.UUID]models.Product
}

// Service implements the order operations.
type Service struct {
	tx      txRunner
	outbox  outbox.Publisher
	repo    Repository
	ledger  stockLedger
	catalog productCatalog
	users   userDirectory
	inbox   processedMarker
	window  time.Duration
	retries int
	now     func() time.Time
	logg    *logger.Logger
}

// ServiceParams lists what NewService needs.
type ServiceParams struct {
	Tx                txRunner
	Outbox            outbox.Publisher
	Repository        Repository
	Ledger            stockLedger
	Catalog           productCatalog
	Users             userDirectory
	Inbox             processedMarker
	IdempotencyWindow time.Duration
	TxAttempts        int
	Now               func() time.Time
	Logger            *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Inbox == nil {
		return nil, fmt.Errorf("inbox required")
	}
	window := params.IdempotencyWindow
	if window <= 0 {
		window = defaultIdempotencyWindow
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		tx:      params.Tx,
		outbox:  params.Outbox,
		repo:    params.Repository,
		ledger:  params.Ledger,
		catalog: params.Catalog,
		users:   params.Users,
		inbox:   params.Inbox,
		window:  window,
		retries: params.TxAttempts,
		now:     now,
		logg:    params.Logger,
	}, nil
}

// CreateOrder reserves stock for the items and opens a DRAFTING order. Admins create
// in-store orders for the customer named by email; everyone else creates an online
// order for themselves.
func (s *Service) CreateOrder(ctx context.Context, actor auth.Principal, input CreateOrderInput) (*models.Order, error) {
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	var address models.Address
	if input.ShippingAddress != nil {
		normalized, err := normalizeAddress(*input.ShippingAddress)
		if err != nil {
			return nil, err
		}
		address = normalized
	}
	orderType := enums.OrderTypeOnline
	if actor.IsAdmin() {
		orderType = enums.OrderTypeInStore
		if strings.TrimSpace(input.CustomerEmail) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required for in-store orders")
		}
	}

	work := func(ctx context.Context, tx *gorm.DB) (*models.Order, error) {
		customerID := actor.ID
		if orderType == enums.OrderTypeInStore {
			customer, err := s.users.CreateOrGet(ctx, tx, input.CustomerEmail)
			if err != nil {
				return nil, err
			}
			customerID = customer.ID
		}

		products, err := s.loadProducts(ctx, tx, itemProductIDs(input.Items))
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Reserve(ctx, tx, itemLines(input.Items)); err != nil {
			return nil, err
		}

		now := s.now()
		order := &models.Order{
			CustomerID:      customerID,
			Status:          enums.OrderStatusDrafting,
			Type:            orderType,
			ShippingAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for i, item := range input.Items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID:  item.ProductID,
				Position:   i,
				Quantity:   item.Quantity,
				PriceCents: products[item.ProductID].PriceCents,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		order.RecomputeTotal()
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return order, nil
	}

	order, err := outbox.Publish(ctx, s.outbox, work, outbox.EventSpec{
		EventType:  enums.EventOrderCreated,
		Exchange:   enums.ExchangeOrder,
		RoutingKey: string(orderType),
	}, s.orderEventOptions(actor)...)
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, order, "order created")
	return order, nil
}

// AddItem reserves stock for a product that is not yet in the order.
func (s *Service) AddItem(ctx context.Context, actor auth.Principal, orderID uuid.UUID, item ItemInput) (*models.Order, error) {
	if err := validateItems([]ItemInput{item}); err != nil {
		return nil, err
	}
	return s.mutateDraft(ctx, actor, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if order.FindItem(item.ProductID) >= 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("product %s is already in the order; update the quantity instead", item.ProductID))
		}
		products, err := s.loadProducts(ctx, tx, []uuid.UUID{item.ProductID})
		if err != nil {
			return err
		}
		if err := s.ledger.Reserve(ctx, tx, itemLines([]ItemInput{item})); err != nil {
			return err
		}
		now := s.now()
		line := models.OrderItem{
			OrderID:    order.ID,
			ProductID:  item.ProductID,
			Position:   nextPosition(order.Items),
			Quantity:   item.Quantity,
			PriceCents: products[item.ProductID].PriceCents,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.InsertItem(ctx, &line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add order item")
		}
		order.Items = append(order.Items, line)
		return nil
	})
}

// RemoveItem drops a line and releases its reservation.
func (s *Service) RemoveItem(ctx context.Context, actor auth.Principal, orderID, productID uuid.UUID) (*models.Order, error) {
	return s.mutateDraft(ctx, actor, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		idx := order.FindItem(productID)
		if idx < 0 {
			return itemNotInOrder(productID)
		}
		line := order.Items[idx]
		if err := s.ledger.Release(ctx, tx, []inventory.Line{{ProductID: productID, Quantity: line.Quantity}}); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, line.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove order item")
		}
		order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
		return nil
	})
}

// UpdateItem sets a line's quantity, reserving or releasing the difference.
func (s *Service) UpdateItem(ctx context.Context, actor auth.Principal, orderID uuid.UUID, item ItemInput) (*models.Order, error) {
	if err := validateItems([]ItemInput{item}); err != nil {
		return nil, err
	}
	return s.mutateDraft(ctx, actor, orderID, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		idx := order.FindItem(item.ProductID)
		if idx < 0 {
			return itemNotInOrder(item.ProductID)
		}
		delta := item.Quantity - order.Items[idx].Quantity
		switch {
		case delta > 0:
			if err := s.ledger.Reserve(ctx, tx, []inventory.Line{{ProductID: item.ProductID, Quantity: delta}}); err != nil {
				return err
			}
		case delta < 0:
			if err := s.ledger.Release(ctx, tx, []inventory.Line{{ProductID: item.ProductID, Quantity: -delta}}); err != nil {
				return err
			}
		default:
			return nil
		}
		if err := repo.UpdateItemQuantity(ctx, order.Items[idx].ID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		order.Items[idx].Quantity = item.Quantity
		return nil
	})
}

// AddShippingAddress sets or replaces the destination of a draft.
func (s *Service) AddShippingAddress(ctx context.Context, actor auth.Principal, orderID uuid.UUID, address models.Address) (*models.Order, error) {
	normalized, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.mutateDraft(ctx, actor, orderID, func(_ *gorm.DB, _ Repository, order *models.Order) error {
		order.ShippingAddress = normalized
		return nil
	})
}

// PlaceOrder commits the reserved stock and moves the order to PLACED. Unless override
// is set, an identical order placed within the idempotency window is rejected.
func (s *Service) PlaceOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID, override bool) (*models.Order, error) {
	work := func(ctx context.Context, tx *gorm.DB) (placement, error) {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, actor, orderID)
		if err != nil {
			return placement{}, err
		}
		if !enums.CanTransition(order.Status, enums.OrderStatusPlaced) {
			return placement{}, invalidState(order, "placed")
		}
		if order.ShippingAddress.IsZero() {
			return placement{}, pkgerrors.New(pkgerrors.CodeInvalidState, "order has no shipping address")
		}
		if len(order.Items) == 0 {
			return placement{}, pkgerrors.New(pkgerrors.CodeInvalidState, "order has no items")
		}

		now := s.now()
		hash := OrderFingerprint(order)
		if !override {
			duplicate, err := repo.ExistsPlacedWithHash(ctx, hash, now.Add(-s.window), order.ID)
			if err != nil {
				return placement{}, err
			}
			if duplicate {
				return placement{}, pkgerrors.New(pkgerrors.CodeDuplicateOrder, fmt.Sprintf(
					"an order with the same items and shipping address was placed within the last %s", s.window))
			}
		}

		products, err := s.loadProducts(ctx, tx, orderProductIDs(order))
		if err != nil {
			return placement{}, err
		}
		// A retry after a failed payment keeps the deduction made by the first placement.
		if order.Status == enums.OrderStatusDrafting {
			if err := s.ledger.Commit(ctx, tx, orderLines(order)); err != nil {
				return placement{}, err
			}
		}

		order.Status = enums.OrderStatusPlaced
		order.Hash = &hash
		order.PlacedAt = &now
		order.UpdatedAt = now
		if err := repo.SaveHeader(ctx, order); err != nil {
			return placement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		return placement{order: order, products: products}, nil
	}

	result, err := outbox.Publish(ctx, s.outbox, work, outbox.EventSpec{
		EventType: enums.EventOrderPlaced,
		Exchange:  enums.ExchangeOrder,
	},
		outbox.WithRoutingKeyFunc(func(res any) (string, error) {
			return geoRoutingKey(res.(placement).order), nil
		}),
		outbox.WithTransformPayload(func(res any) (any, error) {
			p := res.(placement)
			event := payloads.OrderPlacedEvent{
				OrderSnapshot: payloads.NewOrderSnapshot(*p.order),
				Products:      make(map[string]payloads.ProductSnapshot, len(p.products)),
			}
			for id, product := range p.products {
				event.Products[id.String()] = payloads.ProductSnapshot{Name: product.Name, PriceCents: product.PriceCents}
			}
			return event, nil
		}),
		outbox.WithAggregate(enums.AggregateOrders, func(res any) string { return res.(placement).order.ID.String() }),
		outbox.WithActor(actorRef(actor)),
	)
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, result.order, "order placed")
	return result.order, nil
}

// CancelOrder releases every reservation of a draft and moves it to CANCELLED.
func (s *Service) CancelOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	work := func(ctx context.Context, tx *gorm.DB) (*models.Order, error) {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, actor, orderID)
		if err != nil {
			return nil, err
		}
		if !enums.CanTransition(order.Status, enums.OrderStatusCancelled) {
			return nil, invalidState(order, "cancelled")
		}
		if len(order.Items) > 0 {
			if err := s.ledger.Release(ctx, tx, orderLines(order)); err != nil {
				return nil, err
			}
		}
		order.Status = enums.OrderStatusCancelled
		order.UpdatedAt = s.now()
		if err := repo.SaveHeader(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		return order, nil
	}

	opts := append(s.orderEventOptions(actor), outbox.WithRoutingKeyFunc(func(res any) (string, error) {
		return geoRoutingKey(res.(*models.Order)), nil
	}))
	order, err := outbox.Publish(ctx, s.outbox, work, outbox.EventSpec{
		EventType: enums.EventOrderCancelled,
		Exchange:  enums.ExchangeOrder,
	}, opts...)
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, order, "order cancelled")
	return order, nil
}

// ApplyPaymentOutcome moves a placed order according to the payment result. messageKey
// identifies the inbound message; a key that was already applied yields
// ErrAlreadyApplied without touching the order.
func (s *Service) ApplyPaymentOutcome(ctx context.Context, orderID uuid.UUID, outcome PaymentOutcome, messageKey string) (*models.Order, error) {
	// The order type never changes, so the target and event can be chosen before locking.
	current, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	target, eventType, err := paymentTarget(current.Type, outcome)
	if err != nil {
		return nil, err
	}

	work := func(ctx context.Context, tx *gorm.DB) (*models.Order, error) {
		if messageKey != "" {
			fresh, err := s.inbox.MarkProcessedTx(tx, PaymentOutcomeConsumer, messageKey)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment outcome")
			}
			if !fresh {
				return nil, ErrAlreadyApplied
			}
		}
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !enums.CanTransition(order.Status, target) {
			return nil, invalidState(order, strings.ToLower(string(target)))
		}
		order.Status = target
		order.UpdatedAt = s.now()
		if err := repo.SaveHeader(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		return order, nil
	}

	order, err := outbox.Publish(ctx, s.outbox, work, outbox.EventSpec{
		EventType:  eventType,
		Exchange:   enums.ExchangeOrder,
		RoutingKey: string(current.Type),
	},
		outbox.WithTransformPayload(orderSnapshot),
		outbox.WithAggregate(enums.AggregateOrders, orderAggregateID),
	)
	if err != nil {
		return nil, err
	}
	s.logOrder(ctx, order, "payment outcome applied")
	return order, nil
}

// Get returns one order visible to the actor.
func (s *Service) Get(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, order) {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

// List returns a page of orders. Non-admins only ever see their own.
func (s *Service) List(ctx context.Context, actor auth.Principal, input ListInput) (pagination.Page[models.Order], error) {
	var empty pagination.Page[models.Order]
	if input.Status != nil && !input.Status.IsValid() {
		return empty, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown status %q", *input.Status))
	}
	if input.Type != nil && !input.Type.IsValid() {
		return empty, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order type %q", *input.Type))
	}
	sort, err := pagination.ParseSort(input.SortBy, input.SortOrder, sortColumns, "createdAt")
	if err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort")
	}
	filters := ListFilters{Status: input.Status, Type: input.Type}
	if !actor.IsAdmin() {
		id := actor.ID
		filters.CustomerID = &id
	}
	rows, total, err := s.repo.List(ctx, filters, sort, input.Page)
	if err != nil {
		return empty, err
	}
	return pagination.NewPage(rows, input.Page, total), nil
}

// mutateDraft runs fn against a locked DRAFTING order and persists the header with a
// recomputed total. A draft edit that loses a write conflict is rerun like any outbox
// transaction and surfaces as CONFLICT when it keeps losing.
func (s *Service) mutateDraft(ctx context.Context, actor auth.Principal, orderID uuid.UUID, fn func(tx *gorm.DB, repo Repository, order *models.Order) error) (*models.Order, error) {
	var out *models.Order
	err := db.RetryTx(ctx, s.tx, db.RetryOptions{
		Attempts:  s.retries,
		Operation: "order draft " + orderID.String(),
		Logger:    s.logg,
	}, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, actor, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusDrafting {
			return invalidState(order, "modified")
		}
		if err := fn(tx, repo, order); err != nil {
			return err
		}
		order.RecomputeTotal()
		order.UpdatedAt = s.now()
		if err := repo.SaveHeader(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) loadOwned(ctx context.Context, repo Repository, actor auth.Principal, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, order) {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

func (s *Service) loadProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.catalog.FindByIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product with id %s not found", id))
		}
	}
	return products, nil
}

func (s *Service) orderEventOptions(actor auth.Principal) []outbox.PublishOption {
	return []outbox.PublishOption{
		outbox.WithTransformPayload(orderSnapshot),
		outbox.WithAggregate(enums.AggregateOrders, orderAggregateID),
		outbox.WithActor(actorRef(actor)),
	}
}

func (s *Service) logOrder(ctx context.Context, order *models.Order, msg string) {
	if s.logg == nil || order == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"status":      order.Status,
		"type":        order.Type,
		"customer_id": order.CustomerID,
	})
	s.logg.Info(logCtx, msg)
}

func paymentTarget(orderType enums.OrderType, outcome PaymentOutcome) (enums.OrderStatus, enums.EventType, error) {
	switch outcome {
	case PaymentCompleted:
		if orderType == enums.OrderTypeInStore {
			return enums.OrderStatusInStoreCompleted, enums.EventOrderInStoreCompleted, nil
		}
		return enums.OrderStatusProcessing, enums.EventOrderProcessing, nil
	case PaymentFailed:
		return enums.OrderStatusFailedPayment, enums.EventOrderPaymentFailed, nil
	}
	return "", "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment outcome %q", outcome))
}

func canSee(actor auth.Principal, order *models.Order) bool {
	return actor.IsAdmin() || order.CustomerID == actor.ID
}

func actorRef(actor auth.Principal) outbox.ActorRef {
	role := enums.RoleCustomer
	if actor.IsAdmin() {
		role = enums.RoleAdmin
	}
	return outbox.ActorRef{UserID: actor.ID, Role: role}
}

func orderSnapshot(res any) (any, error) {
	return payloads.NewOrderSnapshot(*res.(*models.Order)), nil
}

func orderAggregateID(res any) string {
	return res.(*models.Order).ID.String()
}

// geoRoutingKey is country.state.city.zip.type, or just the type when the order has no
// address yet.
func geoRoutingKey(order *models.Order) string {
	if order.ShippingAddress.IsZero() {
		return string(order.Type)
	}
	a := order.ShippingAddress
	return strings.Join([]string{a.Country, a.State, a.City, a.Zip, string(order.Type)}, ".")
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if _, dup := seen[item.ProductID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is listed more than once", item.ProductID))
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func normalizeAddress(a models.Address) (models.Address, error) {
	out := models.Address{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Zip:     strings.TrimSpace(a.Zip),
		Country: strings.TrimSpace(a.Country),
	}
	if out.Street == "" || out.City == "" || out.State == "" || out.Zip == "" || out.Country == "" {
		return models.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address needs street, city, state, zip and country")
	}
	return out, nil
}

func invalidState(order *models.Order, action string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState,
		fmt.Sprintf("order %s in status %s cannot be %s", order.ID, order.Status, action))
}

func itemNotInOrder(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product with id %s is not in the order", productID))
}

func nextPosition(items []models.OrderItem) int {
	next := 0
	for _, item := range items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next
}

func itemProductIDs(items []ItemInput) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func itemLines(items []ItemInput) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func orderProductIDs(order *models.Order) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func orderLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
