package models

import "time"

// ProcessedMessage records that a consumer already applied a message. The composite
// key makes the insert the dedup check.
type ProcessedMessage struct {
	Consumer    string    `gorm:"column:consumer;primaryKey"`
	MessageKey  string    `gorm:"column:message_key;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null;index"`
}
