package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/norberto-e-888/pos-app/pkg/redis"
)

// Manager is the fast-path dedup guard in front of a consumer's durable inbox. Keys
// follow `pos:idempotency:evt:processed:<consumer>:<message_key>`. It also counts
// delivery attempts for brokers that do not report them.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks messages as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the message has already been claimed and
// otherwise claims it with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, messageKey string) (bool, error) {
	key, err := m.key("processed", consumer, messageKey)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete releases a claim so a redelivery can run the handler again.
func (m *Manager) Delete(ctx context.Context, consumer, messageKey string) error {
	key, err := m.key("processed", consumer, messageKey)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// NextAttempt increments and returns the delivery count of one message.
func (m *Manager) NextAttempt(ctx context.Context, consumer, messageID string) (int, error) {
	key, err := m.key("attempts", consumer, messageID)
	if err != nil {
		return 0, err
	}
	count, err := m.store.IncrWithTTL(ctx, key, m.ttl)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// ClearAttempts forgets the delivery count once a message is settled.
func (m *Manager) ClearAttempts(ctx context.Context, consumer, messageID string) error {
	key, err := m.key("attempts", consumer, messageID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(kind, consumer, id string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("message key is required")
	}
	scope := fmt.Sprintf("evt:%s:%s", kind, consumer)
	return m.store.IdempotencyKey(scope, id), nil
}
