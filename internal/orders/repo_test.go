package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/db/dbtest"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/pagination"
)

func seedOrder(t *testing.T, conn *gorm.DB, customerID uuid.UUID, status enums.OrderStatus, hash string, placedAt *time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		CustomerID:      customerID,
		Status:          status,
		Type:            enums.OrderTypeOnline,
		ShippingAddress: testAddress,
		PlacedAt:        placedAt,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Position: 1, Quantity: 1, PriceCents: 200},
			{ProductID: uuid.New(), Position: 0, Quantity: 2, PriceCents: 100},
		},
	}
	if hash != "" {
		order.Hash = &hash
	}
	order.RecomputeTotal()
	require.NoError(t, NewRepository(conn).Create(context.Background(), order))
	return order
}

func TestRepositoryFindLoadsItemsInPositionOrder(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusDrafting, "", nil)

	got, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 0, got.Items[0].Position)
	assert.Equal(t, 1, got.Items[1].Position)
	assert.Equal(t, testAddress, got.ShippingAddress)
	assert.Equal(t, int64(400), got.TotalCents)

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestRepositoryExistsPlacedWithHash(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	placedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPlaced, "h1", &placedAt)
	ctx := context.Background()

	found, err := repo.ExistsPlacedWithHash(ctx, "h1", placedAt.Add(-time.Minute), uuid.New())
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsPlacedWithHash(ctx, "h1", placedAt.Add(-time.Minute), order.ID)
	require.NoError(t, err)
	assert.False(t, found, "an order never duplicates itself")

	found, err = repo.ExistsPlacedWithHash(ctx, "h1", placedAt.Add(time.Minute), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.ExistsPlacedWithHash(ctx, "h2", placedAt.Add(-time.Minute), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepositoryItemWrites(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusDrafting, "", nil)

	extra := models.OrderItem{OrderID: order.ID, ProductID: uuid.New(), Position: 2, Quantity: 4, PriceCents: 50}
	require.NoError(t, repo.InsertItem(ctx, &extra))
	require.NoError(t, repo.UpdateItemQuantity(ctx, extra.ID, 7))
	require.NoError(t, repo.DeleteItem(ctx, order.Items[0].ID))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 7, got.Items[1].Quantity)
}

func TestRepositoryListFilters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	alice := uuid.New()
	seedOrder(t, conn, alice, enums.OrderStatusDrafting, "", nil)
	seedOrder(t, conn, alice, enums.OrderStatusCancelled, "", nil)
	seedOrder(t, conn, uuid.New(), enums.OrderStatusDrafting, "", nil)

	sort := pagination.Sort{Column: "created_at", Direction: pagination.Desc}
	rows, total, err := repo.List(ctx, ListFilters{CustomerID: &alice}, sort, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)

	drafting := enums.OrderStatusDrafting
	rows, total, err = repo.List(ctx, ListFilters{Status: &drafting}, sort, pagination.Params{Page: 1, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 1)
}
