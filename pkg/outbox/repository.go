package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
)

const maxLastErrorLen = 1024

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish locks the next batch of pending rows. Concurrent relays
// skip rows another relay holds; sqlite ignores the locking clause.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.OutboxEvent
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published = ?", false).
		Where("attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published":    true,
			"published_at": at,
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    truncateError(err),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminalTx parks a row at the attempt ceiling so it is never fetched again while
// staying unpublished for inspection.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    truncateError(err),
			"attempt_count": terminalAttempts,
		}).Error
}

// CountPending reports how many rows are still eligible for publishing.
func (r *Repository) CountPending(ctx context.Context, maxAttempts int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("published = ? AND attempt_count < ?", false, maxAttempts).
		Count(&count).Error
	return count, err
}

// OldestPendingAt returns the creation time of the oldest eligible row, or nil.
func (r *Repository) OldestPendingAt(ctx context.Context, maxAttempts int) (*time.Time, error) {
	var row models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published = ? AND attempt_count < ?", false, maxAttempts).
		Order("created_at ASC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row.CreatedAt, nil
}

// DeletePublishedBefore removes rows relayed before the cutoff. Unpublished and
// dead-lettered rows are kept.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.WithContext(ctx).
		Where("published = ? AND published_at < ?", true, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// FindByID loads one row regardless of state.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	var row models.OutboxEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByAggregate returns the rows for one aggregate in emission order.
func (r *Repository) ListByAggregate(ctx context.Context, collection, aggregateID string) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("aggregate_collection = ? AND aggregate_id = ?", collection, aggregateID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func truncateError(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	return &msg
}
