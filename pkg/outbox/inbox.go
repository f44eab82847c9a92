package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/norberto-e-888/pos-app/pkg/db/models"
)

// Inbox is the consumer-side twin of the outbox: it remembers which messages a
// consumer already applied so redeliveries become no-ops.
type Inbox struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInbox(db *gorm.DB) *Inbox {
	return &Inbox{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// MessageKey builds the dedup key for one delivered event. eventID is the producer's
// event id, so a later event of the same type about the same order (a second payment
// failure after a retried placement) gets its own key.
func MessageKey(aggregateID, eventType, eventID string) string {
	return aggregateID + ":" + eventType + ":" + eventID
}

// MarkProcessedTx records the message inside the consumer's own transaction. It
// returns false when the message was already recorded, in which case the caller must
// skip its side effects.
func (i *Inbox) MarkProcessedTx(tx *gorm.DB, consumer, key string) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	consumer = strings.TrimSpace(consumer)
	key = strings.TrimSpace(key)
	if consumer == "" || key == "" {
		return false, errors.New("consumer and message key are required")
	}
	row := models.ProcessedMessage{
		Consumer:    consumer,
		MessageKey:  key,
		ProcessedAt: i.now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Seen reports whether a message was already applied.
func (i *Inbox) Seen(ctx context.Context, consumer, key string) (bool, error) {
	var count int64
	err := i.db.WithContext(ctx).
		Model(&models.ProcessedMessage{}).
		Where("consumer = ? AND message_key = ?", consumer, key).
		Count(&count).Error
	return count > 0, err
}

// Prune deletes records older than the cutoff.
func (i *Inbox) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := i.db.WithContext(ctx).
		Where("processed_at < ?", before).
		Delete(&models.ProcessedMessage{})
	return res.RowsAffected, res.Error
}
