package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/norberto-e-888/pos-app/pkg/db/types"
	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// OutboxEvent is an event staged in the same transaction as the mutation it describes.
type OutboxEvent struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventType           enums.EventType `gorm:"column:event_type;not null"`
	Exchange            enums.Exchange  `gorm:"column:exchange;not null"`
	RoutingKey          string          `gorm:"column:routing_key;not null;default:''"`
	AggregateCollection string          `gorm:"column:aggregate_collection;not null;default:'';index:ix_outbox_events_aggregate,priority:1"`
	AggregateID         string          `gorm:"column:aggregate_id;not null;default:'';index:ix_outbox_events_aggregate,priority:2"`
	Payload             dbtypes.JSON    `gorm:"column:payload;type:jsonb;not null"`
	Published           bool            `gorm:"column:published;not null;default:false;index:ix_outbox_events_unpublished,priority:1"`
	PublishedAt         *time.Time      `gorm:"column:published_at"`
	AttemptCount        int             `gorm:"column:attempt_count;not null;default:0"`
	LastError           *string         `gorm:"column:last_error"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime;index:ix_outbox_events_unpublished,priority:2"`
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
