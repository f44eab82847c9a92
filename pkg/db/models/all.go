package models

// All lists every persisted model, in dependency order. It feeds gorm AutoMigrate for
// sqlite databases, where the Postgres goose migrations do not apply.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Order{},
		&OrderItem{},
		&CustomerAggregation{},
		&CustomerProductFrequency{},
		&OutboxEvent{},
		&OutboxDLQ{},
		&ProcessedMessage{},
		&ConsumerDeadLetter{},
	}
}
