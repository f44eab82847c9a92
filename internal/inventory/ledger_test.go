package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/db/dbtest"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
)

func seedProduct(t *testing.T, conn *gorm.DB, name string, available, reserved int) models.Product {
	t.Helper()
	p := models.Product{
		Name:              name,
		PriceCents:        1000,
		Category:          enums.ProductCategoryElectronics,
		AvailableQuantity: available,
		ReservedQuantity:  reserved,
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func reload(t *testing.T, conn *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p
}

func inTx(t *testing.T, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return conn.Transaction(fn)
}

func TestReserveWithinAvailability(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Laptop", 5, 0)

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, []Line{{ProductID: p.ID, Quantity: 5}})
	})
	require.NoError(t, err)

	got := reload(t, conn, p.ID)
	assert.Equal(t, 5, got.AvailableQuantity)
	assert.Equal(t, 5, got.ReservedQuantity)
}

func TestReserveOversellRollsBack(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Laptop", 5, 0)
	ctx := context.Background()

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []Line{{ProductID: p.ID, Quantity: 5}})
	}))

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []Line{{ProductID: p.ID, Quantity: 1}})
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "Laptop")

	got := reload(t, conn, p.ID)
	assert.Equal(t, 5, got.ReservedQuantity, "first reservation must be untouched")
	assert.Equal(t, 5, got.AvailableQuantity)
}

func TestReserveNamesEveryShortProduct(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	a := seedProduct(t, conn, "Alpha", 1, 0)
	b := seedProduct(t, conn, "Beta", 1, 0)
	c := seedProduct(t, conn, "Gamma", 10, 0)

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, []Line{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 3},
			{ProductID: c.ID, Quantity: 1},
		})
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Alpha", "Beta"}, details["products"])

	assert.Equal(t, 0, reload(t, conn, c.ID).ReservedQuantity)
}

func TestReserveMergesDuplicateLines(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Shirt", 3, 0)

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, []Line{
			{ProductID: p.ID, Quantity: 2},
			{ProductID: p.ID, Quantity: 2},
		})
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 0, reload(t, conn, p.ID).ReservedQuantity)
}

func TestReserveUnknownProduct(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, []Line{{ProductID: uuid.New(), Quantity: 1}})
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Book", 3, 0)

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, []Line{{ProductID: p.ID, Quantity: 0}})
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestReleaseReturnsReservation(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Bread", 4, 3)

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Release(context.Background(), tx, []Line{{ProductID: p.ID, Quantity: 2}})
	}))
	got := reload(t, conn, p.ID)
	assert.Equal(t, 1, got.ReservedQuantity)
	assert.Equal(t, 4, got.AvailableQuantity)
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Bread", 4, 1)

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Release(context.Background(), tx, []Line{{ProductID: p.ID, Quantity: 2}})
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))
	assert.Equal(t, 1, reload(t, conn, p.ID).ReservedQuantity)
}

func TestCommitDeductsBothCounters(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Phone", 10, 4)

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Commit(context.Background(), tx, []Line{{ProductID: p.ID, Quantity: 3}})
	}))
	got := reload(t, conn, p.ID)
	assert.Equal(t, 7, got.AvailableQuantity)
	assert.Equal(t, 1, got.ReservedQuantity)
}

func TestCommitWithoutReservationFails(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Phone", 10, 0)

	err := inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.Commit(context.Background(), tx, []Line{{ProductID: p.ID, Quantity: 1}})
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 10, reload(t, conn, p.ID).AvailableQuantity)
}

func TestAddStock(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Pen", 0, 0)
	ctx := context.Background()

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return ledger.AddStock(ctx, tx, p.ID, 12)
	}))
	assert.Equal(t, 12, reload(t, conn, p.ID).AvailableQuantity)

	err := inTx(t, conn, func(tx *gorm.DB) error { return ledger.AddStock(ctx, tx, p.ID, 0) })
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	err = inTx(t, conn, func(tx *gorm.DB) error { return ledger.AddStock(ctx, tx, uuid.New(), 1) })
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestInvariantHoldsAcrossSequence(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger()
	p := seedProduct(t, conn, "Mug", 6, 0)
	ctx := context.Background()
	line := func(q int) []Line { return []Line{{ProductID: p.ID, Quantity: q}} }

	steps := []func(tx *gorm.DB) error{
		func(tx *gorm.DB) error { return ledger.Reserve(ctx, tx, line(4)) },
		func(tx *gorm.DB) error { return ledger.Reserve(ctx, tx, line(3)) },
		func(tx *gorm.DB) error { return ledger.Commit(ctx, tx, line(2)) },
		func(tx *gorm.DB) error { return ledger.Release(ctx, tx, line(2)) },
		func(tx *gorm.DB) error { return ledger.Reserve(ctx, tx, line(4)) },
		func(tx *gorm.DB) error { return ledger.Reserve(ctx, tx, line(1)) },
	}
	for _, step := range steps {
		_ = inTx(t, conn, step)
		got := reload(t, conn, p.ID)
		require.GreaterOrEqual(t, got.ReservedQuantity, 0)
		require.LessOrEqual(t, got.ReservedQuantity, got.AvailableQuantity)
	}
	got := reload(t, conn, p.ID)
	assert.Equal(t, 4, got.AvailableQuantity)
	assert.Equal(t, 4, got.ReservedQuantity)
}
