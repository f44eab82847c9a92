package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/norberto-e-888/pos-app/pkg/db/types"
	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// ConsumerDeadLetter keeps inbound messages a consumer gave up on.
type ConsumerDeadLetter struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Consumer     string               `gorm:"column:consumer;not null;index"`
	MessageID    string               `gorm:"column:message_id;not null"`
	EventType    string               `gorm:"column:event_type;not null;default:''"`
	RoutingKey   string               `gorm:"column:routing_key;not null;default:''"`
	Payload      []byte               `gorm:"column:payload"`
	Attributes   dbtypes.JSON         `gorm:"column:attributes;type:jsonb"`
	Reason       enums.DLQErrorReason `gorm:"column:reason;not null"`
	ErrorMessage string               `gorm:"column:error_message;not null;default:''"`
	Attempts     int                  `gorm:"column:attempts;not null;default:0"`
	FailedAt     time.Time            `gorm:"column:failed_at;autoCreateTime"`
}

func (d *ConsumerDeadLetter) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
