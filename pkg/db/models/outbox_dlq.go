package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/norberto-e-888/pos-app/pkg/db/types"
	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// OutboxDLQ captures terminal relay failures for auditing and remediation.
type OutboxDLQ struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	EventID             uuid.UUID            `gorm:"column:event_id;type:uuid;not null;index"`
	EventType           enums.EventType      `gorm:"column:event_type;not null"`
	Exchange            enums.Exchange       `gorm:"column:exchange;not null"`
	RoutingKey          string               `gorm:"column:routing_key;not null;default:''"`
	AggregateCollection string               `gorm:"column:aggregate_collection;not null;default:''"`
	AggregateID         string               `gorm:"column:aggregate_id;not null;default:''"`
	Payload             dbtypes.JSON         `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason         enums.DLQErrorReason `gorm:"column:error_reason;not null"`
	ErrorMessage        *string              `gorm:"column:error_message"`
	AttemptCount        int                  `gorm:"column:attempt_count;not null;default:0"`
	FailedAt            time.Time            `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
