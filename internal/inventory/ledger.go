// Package inventory owns the stock counters on products. Every mutation runs inside the
// caller's transaction so a failed check rolls back together with the order change that
// triggered it.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
)

// Line is a quantity of one product.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Ledger applies reserve, release and commit to product stock. After any committed
// sequence of calls, 0 <= reserved <= available holds for every product.
type Ledger struct {
	now func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// Reserve holds stock for the lines. The increment happens first and the availability
// check reads the result, so two racing reservations cannot both pass.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := normalize(tx, lines)
	if err != nil {
		return err
	}
	for _, line := range merged {
		res := l.products(ctx, tx).
			Where("id = ?", line.ProductID).
			UpdateColumns(map[string]any{
				"reserved_quantity": gorm.Expr("reserved_quantity + ?", line.Quantity),
				"updated_at":        l.now(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return productNotFound(line.ProductID)
		}
	}

	rows, err := load(ctx, tx, merged)
	if err != nil {
		return err
	}
	var oversold []string
	for _, line := range merged {
		product := rows[line.ProductID]
		if product.ReservedQuantity > product.AvailableQuantity {
			oversold = append(oversold, product.Name)
		}
	}
	if len(oversold) > 0 {
		return pkgerrors.InsufficientStock(oversold)
	}
	return nil
}

// Release gives reserved stock back. It only relaxes the invariant so availability is
// not re-checked, but it never lets the reservation go negative.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := normalize(tx, lines)
	if err != nil {
		return err
	}
	for _, line := range merged {
		res := l.products(ctx, tx).
			Where("id = ? AND reserved_quantity >= ?", line.ProductID, line.Quantity).
			UpdateColumns(map[string]any{
				"reserved_quantity": gorm.Expr("reserved_quantity - ?", line.Quantity),
				"updated_at":        l.now(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
		}
		if res.RowsAffected == 0 {
			if err := ensureExists(ctx, tx, line.ProductID); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeInvalidState,
				fmt.Sprintf("cannot release %d units of product %s: not reserved", line.Quantity, line.ProductID))
		}
	}
	return nil
}

// Commit turns reservations into permanent deductions.
func (l *Ledger) Commit(ctx context.Context, tx *gorm.DB, lines []Line) error {
	merged, err := normalize(tx, lines)
	if err != nil {
		return err
	}
	var short []uuid.UUID
	for _, line := range merged {
		res := l.products(ctx, tx).
			Where("id = ? AND reserved_quantity >= ? AND available_quantity >= ?", line.ProductID, line.Quantity, line.Quantity).
			UpdateColumns(map[string]any{
				"available_quantity": gorm.Expr("available_quantity - ?", line.Quantity),
				"reserved_quantity":  gorm.Expr("reserved_quantity - ?", line.Quantity),
				"updated_at":         l.now(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit stock")
		}
		if res.RowsAffected == 0 {
			short = append(short, line.ProductID)
		}
	}
	if len(short) == 0 {
		return nil
	}

	shortLines := make([]Line, 0, len(short))
	for _, id := range short {
		shortLines = append(shortLines, Line{ProductID: id})
	}
	rows, err := load(ctx, tx, shortLines)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(short))
	for _, id := range short {
		names = append(names, rows[id].Name)
	}
	return pkgerrors.InsufficientStock(names)
}

// AddStock increases the available quantity of one product.
func (l *Ledger) AddStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	res := l.products(ctx, tx).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"available_quantity": gorm.Expr("available_quantity + ?", quantity),
			"updated_at":         l.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "add stock")
	}
	if res.RowsAffected == 0 {
		return productNotFound(productID)
	}
	return nil
}

func (l *Ledger) products(ctx context.Context, tx *gorm.DB) *gorm.DB {
	return tx.WithContext(ctx).Model(&models.Product{})
}

// normalize merges lines per product and orders them by id so concurrent callers lock
// rows in the same sequence.
func normalize(tx *gorm.DB, lines []Line) ([]Line, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		totals[line.ProductID] += line.Quantity
	}
	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged, nil
}

func load(ctx context.Context, tx *gorm.DB, lines []Line) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	var products []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, productNotFound(id)
		}
	}
	return out, nil
}

func ensureExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	_, err := load(ctx, tx, []Line{{ProductID: id}})
	return err
}

func productNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
}
