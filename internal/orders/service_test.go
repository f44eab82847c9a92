package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/internal/inventory"
	"github.com/norberto-e-888/pos-app/internal/products"
	"github.com/norberto-e-888/pos-app/internal/users"
	"github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db/dbtest"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type faultyLedger struct {
	*inventory.Ledger
	commitErr error
}

// Commit applies the deduction and then fails, as if the process died before the
// transaction could finish.
func (f faultyLedger) Commit(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	if err := f.Ledger.Commit(ctx, tx, lines); err != nil {
		return err
	}
	return f.commitErr
}

type fixture struct {
	svc   *Service
	conn  *gorm.DB
	clock *fakeClock
}

type fixtureOption func(*ServiceParams)

func withLedger(l stockLedger) fixtureOption {
	return func(p *ServiceParams) { p.Ledger = l }
}

// contendedTx loses the first conflicts transactions to a concurrent writer.
type contendedTx struct {
	inner     txRunner
	conflicts int
	calls     int
}

func (c *contendedTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	if c.calls <= c.conflicts {
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	return c.inner.WithTx(ctx, fn)
}

func withContention(c *contendedTx) fixtureOption {
	return func(p *ServiceParams) {
		c.inner = p.Tx
		p.Tx = c
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	outboxSvc, err := outbox.NewService(outbox.ServiceParams{Tx: client, Repository: outbox.NewRepository(conn)})
	require.NoError(t, err)
	directory, err := users.NewService(users.ServiceParams{
		Tx:         client,
		Repository: users.NewRepository(conn),
		Outbox:     outboxSvc,
		JWT:        config.JWTConfig{Secret: "s", Issuer: "pos-app", ExpirationMinutes: 5},
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	params := ServiceParams{
		Tx:         client,
		Outbox:     outboxSvc,
		Repository: NewRepository(conn),
		Ledger:     inventory.NewLedger(),
		Catalog:    products.NewRepository(conn),
		Users:      directory,
		Inbox:      outbox.NewInbox(conn),
		Now:        clock.Now,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, clock: clock}
}

func (f fixture) product(t *testing.T, name string, available int, price int64) models.Product {
	t.Helper()
	p := models.Product{Name: name, PriceCents: price, Category: enums.ProductCategoryElectronics, AvailableQuantity: available}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

func (f fixture) stock(t *testing.T, id uuid.UUID) (available, reserved int) {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	return p.AvailableQuantity, p.ReservedQuantity
}

func (f fixture) events(t *testing.T, eventType enums.EventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", eventType).Order("created_at").Find(&rows).Error)
	return rows
}

func decodeData(t *testing.T, row models.OutboxEvent, into any) {
	t.Helper()
	env, err := outbox.DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(env.Data, into))
}

func customer() auth.Principal {
	return auth.Principal{ID: uuid.New(), Roles: []enums.Role{enums.RoleCustomer}}
}

func admin() auth.Principal {
	return auth.Principal{ID: uuid.New(), Roles: []enums.Role{enums.RoleAdmin}}
}

func address() *models.Address {
	a := testAddress
	return &a
}

func TestCreateOrderReservesAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	laptop := f.product(t, "Laptop", 5, 100000)
	mouse := f.product(t, "Mouse", 10, 2500)
	actor := customer()

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{
		Items: []ItemInput{{ProductID: laptop.ID, Quantity: 2}, {ProductID: mouse.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDrafting, order.Status)
	assert.Equal(t, enums.OrderTypeOnline, order.Type)
	assert.Equal(t, actor.ID, order.CustomerID)
	assert.Equal(t, int64(2*100000+3*2500), order.TotalCents)

	_, reserved := f.stock(t, laptop.ID)
	assert.Equal(t, 2, reserved)
	_, reserved = f.stock(t, mouse.ID)
	assert.Equal(t, 3, reserved)

	rows := f.events(t, enums.EventOrderCreated)
	require.Len(t, rows, 1)
	assert.Equal(t, "online", rows[0].RoutingKey)
	assert.Equal(t, order.ID.String(), rows[0].AggregateID)
	assert.Equal(t, string(enums.AggregateOrders), rows[0].AggregateCollection)

	var snapshot payloads.OrderSnapshot
	decodeData(t, rows[0], &snapshot)
	assert.Equal(t, order.ID, snapshot.ID)
	assert.Len(t, snapshot.Items, 2)
	assert.Nil(t, snapshot.ShippingAddress)
}

func TestCreateOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	laptop := f.product(t, "Laptop", 1, 100000)
	mouse := f.product(t, "Mouse", 10, 2500)

	_, err := f.svc.CreateOrder(ctx, customer(), CreateOrderInput{
		Items: []ItemInput{{ProductID: mouse.ID, Quantity: 1}, {ProductID: laptop.ID, Quantity: 2}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "Laptop")

	_, reserved := f.stock(t, mouse.ID)
	assert.Zero(t, reserved)
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.events(t, enums.EventOrderCreated))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pen", 3, 100)

	_, err := f.svc.CreateOrder(ctx, customer(), CreateOrderInput{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateOrder(ctx, customer(), CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}, {ProductID: p.ID, Quantity: 1}}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateOrder(ctx, customer(), CreateOrderInput{Items: []ItemInput{{ProductID: uuid.New(), Quantity: 1}}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.CreateOrder(ctx, customer(), CreateOrderInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: &models.Address{Street: "only street"},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestAdminCreateOrderResolvesCustomerByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Coffee", 10, 450)

	_, err := f.svc.CreateOrder(ctx, admin(), CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	order, err := f.svc.CreateOrder(ctx, admin(), CreateOrderInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 2}},
		ShippingAddress: address(),
		CustomerEmail:   "walkin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderTypeInStore, order.Type)

	var user models.User
	require.NoError(t, f.conn.First(&user, "email = ?", "walkin@example.com").Error)
	assert.Equal(t, user.ID, order.CustomerID)

	assert.Len(t, f.events(t, enums.EventAuthSignUp), 1)
	created := f.events(t, enums.EventOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "in-store", created[0].RoutingKey)

	again, err := f.svc.CreateOrder(ctx, admin(), CreateOrderInput{
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 1}},
		CustomerEmail: "walkin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.CustomerID)
	assert.Len(t, f.events(t, enums.EventAuthSignUp), 1, "existing customer is not signed up twice")
}

func TestSecondOrderCannotOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Console", 5, 50000)
	p2 := f.product(t, "Cable", 5, 500)

	first, err := f.svc.CreateOrder(ctx, customer(), CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 5}}})
	require.NoError(t, err)

	second, err := f.svc.CreateOrder(ctx, customer(), CreateOrderInput{Items: []ItemInput{{ProductID: p2.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, auth.Principal{ID: second.CustomerID, Roles: []enums.Role{enums.RoleCustomer}}, second.ID,
		ItemInput{ProductID: p.ID, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	available, reserved := f.stock(t, p.ID)
	assert.Equal(t, 5, available)
	assert.Equal(t, 5, reserved)

	reloaded, err := f.svc.Get(ctx, admin(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDrafting, reloaded.Status)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, 5, reloaded.Items[0].Quantity)

	untouched, err := f.svc.Get(ctx, admin(), second.ID)
	require.NoError(t, err)
	assert.Len(t, untouched.Items, 1)
}

func TestDraftItemOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := customer()
	a := f.product(t, "A", 10, 100)
	b := f.product(t, "B", 10, 300)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: a.ID, Quantity: 2}}})
	require.NoError(t, err)

	order, err = f.svc.AddItem(ctx, actor, order.ID, ItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, int64(2*100+300), order.TotalCents)

	_, err = f.svc.AddItem(ctx, actor, order.ID, ItemInput{ProductID: b.ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	order, err = f.svc.UpdateItem(ctx, actor, order.ID, ItemInput{ProductID: a.ID, Quantity: 5})
	require.NoError(t, err)
	_, reserved := f.stock(t, a.ID)
	assert.Equal(t, 5, reserved)

	order, err = f.svc.UpdateItem(ctx, actor, order.ID, ItemInput{ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, reserved = f.stock(t, a.ID)
	assert.Equal(t, 1, reserved)
	assert.Equal(t, int64(100+300), order.TotalCents)

	order, err = f.svc.RemoveItem(ctx, actor, order.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, order.Items, 1)
	_, reserved = f.stock(t, b.ID)
	assert.Zero(t, reserved)

	_, err = f.svc.RemoveItem(ctx, actor, order.ID, b.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = f.svc.UpdateItem(ctx, actor, order.ID, ItemInput{ProductID: b.ID, Quantity: 2})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	persisted, err := f.svc.Get(ctx, actor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalCents, persisted.TotalCents)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, 1, persisted.Items[0].Quantity)
}

func TestDraftEditRetriesLostWriteConflicts(t *testing.T) {
	contention := &contendedTx{}
	f := newFixture(t, withContention(contention))
	ctx := context.Background()
	actor := customer()
	a := f.product(t, "A", 10, 100)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: a.ID, Quantity: 2}}})
	require.NoError(t, err)

	contention.conflicts = 2
	order, err = f.svc.UpdateItem(ctx, actor, order.ID, ItemInput{ProductID: a.ID, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, contention.calls)
	assert.Equal(t, int64(4*100), order.TotalCents)
	_, reserved := f.stock(t, a.ID)
	assert.Equal(t, 4, reserved)
}

func TestDraftEditSurfacesConflictWhenContentionPersists(t *testing.T) {
	contention := &contendedTx{}
	f := newFixture(t, withContention(contention))
	ctx := context.Background()
	actor := customer()
	a := f.product(t, "A", 10, 100)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: a.ID, Quantity: 2}}})
	require.NoError(t, err)

	contention.conflicts = 100
	_, err = f.svc.UpdateItem(ctx, actor, order.ID, ItemInput{ProductID: a.ID, Quantity: 4})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	assert.Equal(t, 3, contention.calls)

	_, reserved := f.stock(t, a.ID)
	assert.Equal(t, 2, reserved)
}

func TestOtherCustomersOrdersLookAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tea", 10, 300)
	owner := customer()
	order, err := f.svc.CreateOrder(ctx, owner, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	stranger := customer()
	_, err = f.svc.Get(ctx, stranger, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = f.svc.CancelOrder(ctx, stranger, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = f.svc.AddShippingAddress(ctx, stranger, order.ID, testAddress)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, admin(), order.ID)
	assert.NoError(t, err)
}

func TestPlaceOrderCommitsStockAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := customer()
	p := f.product(t, "Monitor", 4, 20000)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 3}}})
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, actor, order.ID, false)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState), "address required")

	_, err = f.svc.AddShippingAddress(ctx, actor, order.ID, testAddress)
	require.NoError(t, err)

	placed, err := f.svc.PlaceOrder(ctx, actor, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, placed.Status)
	require.NotNil(t, placed.Hash)
	assert.Equal(t, OrderFingerprint(placed), *placed.Hash)
	require.NotNil(t, placed.PlacedAt)

	available, reserved := f.stock(t, p.ID)
	assert.Equal(t, 1, available)
	assert.Zero(t, reserved)

	rows := f.events(t, enums.EventOrderPlaced)
	require.Len(t, rows, 1)
	assert.Equal(t, "US.IL.Springfield.62701.online", rows[0].RoutingKey)
	var event payloads.OrderPlacedEvent
	decodeData(t, rows[0], &event)
	assert.Equal(t, enums.OrderStatusPlaced, event.Status)
	assert.Equal(t, "Monitor", event.Products[p.ID.String()].Name)
	require.NotNil(t, event.ShippingAddress)
	assert.Equal(t, "62701", event.ShippingAddress.Zip)

	_, err = f.svc.PlaceOrder(ctx, actor, order.ID, false)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))
}

func TestPlaceOrderIdempotencyWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := customer()
	p := f.product(t, "Shoes", 10, 8000)

	newDraft := func() *models.Order {
		order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{
			Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: address(),
		})
		require.NoError(t, err)
		return order
	}

	first := newDraft()
	_, err := f.svc.PlaceOrder(ctx, actor, first.ID, false)
	require.NoError(t, err)

	second := newDraft()
	f.clock.Advance(9 * time.Minute)
	_, err = f.svc.PlaceOrder(ctx, actor, second.ID, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDuplicateOrder))

	reloaded, err := f.svc.Get(ctx, actor, second.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDrafting, reloaded.Status)

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.PlaceOrder(ctx, actor, second.ID, false)
	require.NoError(t, err)

	third := newDraft()
	_, err = f.svc.PlaceOrder(ctx, actor, third.ID, true)
	require.NoError(t, err, "override skips the window")
}

func TestPlaceOrderFaultLeavesStockAndStatus(t *testing.T) {
	fault := errors.New("injected fault")
	f := newFixture(t, withLedger(faultyLedger{Ledger: inventory.NewLedger(), commitErr: fault}))
	ctx := context.Background()
	actor := customer()
	p := f.product(t, "Camera", 5, 30000)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 2}},
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, actor, order.ID, false)
	require.ErrorIs(t, err, fault)

	available, reserved := f.stock(t, p.ID)
	assert.Equal(t, 5, available, "no permanent decrement")
	assert.Equal(t, 2, reserved, "reservation kept")

	reloaded, err := f.svc.Get(ctx, actor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDrafting, reloaded.Status)
	assert.Nil(t, reloaded.Hash)
	assert.Empty(t, f.events(t, enums.EventOrderPlaced))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := customer()
	p := f.product(t, "Chair", 5, 4000)

	draft, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)
	cancelled, err := f.svc.CancelOrder(ctx, actor, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	_, reserved := f.stock(t, p.ID)
	assert.Zero(t, reserved)

	rows := f.events(t, enums.EventOrderCancelled)
	require.Len(t, rows, 1)
	assert.Equal(t, "online", rows[0].RoutingKey)

	placed, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: address()})
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, actor, placed.ID, false)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, actor, placed.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))

	_, err = f.svc.AddItem(ctx, actor, placed.ID, ItemInput{ProductID: p.ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))
}

func TestApplyPaymentOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := customer()
	p := f.product(t, "Lamp", 5, 2500)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: address()})
	require.NoError(t, err)

	_, err = f.svc.ApplyPaymentOutcome(ctx, order.ID, PaymentCompleted, "early")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState), "drafts cannot be processed")

	_, err = f.svc.PlaceOrder(ctx, actor, order.ID, false)
	require.NoError(t, err)

	updated, err := f.svc.ApplyPaymentOutcome(ctx, order.ID, PaymentCompleted, order.ID.String()+":payment.checkout-completed")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, updated.Status)

	_, err = f.svc.ApplyPaymentOutcome(ctx, order.ID, PaymentCompleted, order.ID.String()+":payment.checkout-completed")
	require.ErrorIs(t, err, ErrAlreadyApplied)

	rows := f.events(t, enums.EventOrderProcessing)
	require.Len(t, rows, 1)
	assert.Equal(t, "online", rows[0].RoutingKey)
}

func TestFailedPaymentCanBePlacedAgainWithoutSecondDeduction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := customer()
	p := f.product(t, "Desk", 3, 15000)

	order, err := f.svc.CreateOrder(ctx, actor, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 2}}, ShippingAddress: address()})
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, actor, order.ID, false)
	require.NoError(t, err)

	failed, err := f.svc.ApplyPaymentOutcome(ctx, order.ID, PaymentFailed, "k1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailedPayment, failed.Status)
	assert.Len(t, f.events(t, enums.EventOrderPaymentFailed), 1)

	_, err = f.svc.PlaceOrder(ctx, actor, order.ID, false)
	require.NoError(t, err, "a retry of the same order is not a duplicate of itself")

	available, reserved := f.stock(t, p.ID)
	assert.Equal(t, 1, available)
	assert.Zero(t, reserved)
	assert.Len(t, f.events(t, enums.EventOrderPlaced), 2)

	again, err := f.svc.ApplyPaymentOutcome(ctx, order.ID, PaymentFailed, "k2")
	require.NoError(t, err, "the retried placement can fail payment again")
	assert.Equal(t, enums.OrderStatusFailedPayment, again.Status)
	assert.Len(t, f.events(t, enums.EventOrderPaymentFailed), 2)
}

func TestInStorePaymentCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Bag", 3, 1000)
	staff := admin()

	order, err := f.svc.CreateOrder(ctx, staff, CreateOrderInput{
		Items:           []ItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: address(),
		CustomerEmail:   "shopper@example.com",
	})
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, staff, order.ID, false)
	require.NoError(t, err)

	done, err := f.svc.ApplyPaymentOutcome(ctx, order.ID, PaymentCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInStoreCompleted, done.Status)
	rows := f.events(t, enums.EventOrderInStoreCompleted)
	require.Len(t, rows, 1)
	assert.Equal(t, "in-store", rows[0].RoutingKey)
}

func TestListScopesAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Gum", 100, 100)
	alice := customer()
	bob := customer()

	for i := 1; i <= 3; i++ {
		_, err := f.svc.CreateOrder(ctx, alice, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: i}}})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	bobOrder, err := f.svc.CreateOrder(ctx, bob, CreateOrderInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, bob, bobOrder.ID)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, alice, ListInput{SortBy: "total", SortOrder: "desc", Page: pagination.Params{Page: 1, Size: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(300), page.Items[0].TotalCents)
	for _, o := range page.Items {
		assert.Equal(t, alice.ID, o.CustomerID)
	}

	cancelled := enums.OrderStatusCancelled
	page, err = f.svc.List(ctx, admin(), ListInput{Status: &cancelled})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, bobOrder.ID, page.Items[0].ID)

	bogus := enums.OrderStatus("LOST")
	_, err = f.svc.List(ctx, alice, ListInput{Status: &bogus})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
