// Package aggregation keeps per-customer payment statistics up to date from completed
// payments.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// ConsumerName is the processed_messages consumer the projector records under.
const ConsumerName = "orders.customer-aggregation"

// ErrAlreadyProcessed reports a message the projector applied on an earlier delivery.
var ErrAlreadyProcessed = errors.New("payment already aggregated")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type processedMarker interface {
	MarkProcessedTx(tx *gorm.DB, consumer, key string) (bool, error)
}

// View is a customer's aggregation with the per-product quantities folded in.
type View struct {
	CustomerID       uuid.UUID        `json:"customerId"`
	NumberOfPayments int64            `json:"numberOfPayments"`
	TotalAmountCents int64            `json:"totalAmount"`
	AverageAmount    decimal.Decimal  `json:"averageAmount"`
	ProductFrequency map[string]int64 `json:"productFrequency"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Projector folds completed payments into customer_aggregations and
// customer_product_frequencies.
type Projector struct {
	db    *gorm.DB
	tx    txRunner
	inbox processedMarker
	logg  *logger.Logger
	now   func() time.Time
}

// ProjectorParams lists what NewProjector needs.
type ProjectorParams struct {
	DB     *gorm.DB
	Tx     txRunner
	Inbox  processedMarker
	Logger *logger.Logger
}

func NewProjector(params ProjectorParams) (*Projector, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inbox == nil {
		return nil, fmt.Errorf("inbox required")
	}
	return &Projector{
		db:    params.DB,
		tx:    params.Tx,
		inbox: params.Inbox,
		logg:  params.Logger,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// OnPaymentCompleted adds the order's total to its customer's running statistics. The
// message key is recorded in the same transaction; a key seen before returns
// ErrAlreadyProcessed and changes nothing.
func (p *Projector) OnPaymentCompleted(ctx context.Context, orderID uuid.UUID, messageKey string) error {
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		fresh, err := p.inbox.MarkProcessedTx(tx, ConsumerName, messageKey)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record aggregation message")
		}
		if !fresh {
			return ErrAlreadyProcessed
		}

		var order models.Order
		err = tx.WithContext(ctx).Preload("Items").Where("id = ?", orderID).First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if err := p.addPayment(ctx, tx, order.CustomerID, order.TotalCents); err != nil {
			return err
		}
		for _, item := range order.Items {
			if err := p.addFrequency(ctx, tx, order.CustomerID, item.ProductID, int64(item.Quantity)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if p.logg != nil {
		p.logg.Info(p.logg.WithOrderID(ctx, orderID.String()), "customer aggregation updated")
	}
	return nil
}

func (p *Projector) addPayment(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, amount int64) error {
	now := p.now()
	var agg models.CustomerAggregation
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&agg).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		agg = models.CustomerAggregation{CustomerID: customerID, CreatedAt: now}
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer aggregation")
	}

	agg.NumberOfPayments++
	agg.TotalAmountCents += amount
	agg.AverageAmount = Average(agg.TotalAmountCents, agg.NumberOfPayments)
	agg.UpdatedAt = now
	if err := tx.WithContext(ctx).Save(&agg).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer aggregation")
	}
	return nil
}

func (p *Projector) addFrequency(ctx context.Context, tx *gorm.DB, customerID, productID uuid.UUID, qty int64) error {
	row := models.CustomerProductFrequency{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   qty,
		UpdatedAt:  p.now(),
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("customer_product_frequencies.quantity + excluded.quantity"),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product frequency")
	}
	return nil
}

// Get returns the aggregation of one customer.
func (p *Projector) Get(ctx context.Context, customerID uuid.UUID) (*View, error) {
	var agg models.CustomerAggregation
	err := p.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&agg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no aggregation for customer %s", customerID))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer aggregation")
	}

	var freqs []models.CustomerProductFrequency
	if err := p.db.WithContext(ctx).Where("customer_id = ?", customerID).Find(&freqs).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product frequencies")
	}
	view := &View{
		CustomerID:       agg.CustomerID,
		NumberOfPayments: agg.NumberOfPayments,
		TotalAmountCents: agg.TotalAmountCents,
		AverageAmount:    agg.AverageAmount,
		ProductFrequency: make(map[string]int64, len(freqs)),
		UpdatedAt:        agg.UpdatedAt,
	}
	for _, f := range freqs {
		view.ProductFrequency[f.ProductID.String()] = f.Quantity
	}
	return view, nil
}

// Average is total/count rounded half away from zero to two places.
func Average(total, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(count)).Round(2)
}
