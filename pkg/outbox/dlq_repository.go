package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository stores messages given up on: relay rows in outbox_dlq and inbound
// consumer messages in consumer_dead_letters.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var dlq models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&dlq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dlq, nil
}

func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// RecordConsumerFailure parks an inbound message the consumer stopped retrying.
func (r *DLQRepository) RecordConsumerFailure(ctx context.Context, entry models.ConsumerDeadLetter) error {
	if entry.Consumer == "" {
		return errors.New("consumer name required")
	}
	if !entry.Reason.IsValid() {
		return errors.New("unknown dead-letter reason")
	}
	entry.ErrorMessage = truncateDLQError(entry.ErrorMessage)
	return r.db.WithContext(ctx).Create(&entry).Error
}

// ListConsumerFailures returns the newest dead letters of one consumer.
func (r *DLQRepository) ListConsumerFailures(ctx context.Context, consumer string, limit int) ([]models.ConsumerDeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.ConsumerDeadLetter
	err := r.db.WithContext(ctx).
		Where("consumer = ?", consumer).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountByReason tallies relay dead letters per reason.
func (r *DLQRepository) CountByReason(ctx context.Context) (map[enums.DLQErrorReason]int64, error) {
	var rows []struct {
		ErrorReason enums.DLQErrorReason
		Total       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("error_reason, COUNT(*) AS total").
		Group("error_reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.DLQErrorReason]int64, len(rows))
	for _, row := range rows {
		out[row.ErrorReason] = row.Total
	}
	return out, nil
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	return message[:maxDLQErrorLen]
}
