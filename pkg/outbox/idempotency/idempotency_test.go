package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore mimics the redis commands the manager relies on. ttls records the
// expiry requested for each key.
type memoryStore struct {
	values map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", m.err }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = 1
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.values[key]++
	if m.values[key] == 1 {
		m.ttls[key] = ttl
	}
	return m.values[key], nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		delete(m.ttls, key)
	}
	return m.err
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "pos:idempotency:" + scope + ":" + id
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	assert.Error(t, err)
}

func TestClaimIsExclusiveUntilReleased(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	const key = "order-1:payment.checkout-completed"

	seen, err := manager.CheckAndMarkProcessed(ctx, "aggregation", key)
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, 24*time.Hour, store.ttls["pos:idempotency:evt:processed:aggregation:"+key])

	seen, err = manager.CheckAndMarkProcessed(ctx, "aggregation", key)
	require.NoError(t, err)
	assert.True(t, seen, "second claim sees the first")

	seen, err = manager.CheckAndMarkProcessed(ctx, "order-status", key)
	require.NoError(t, err)
	assert.False(t, seen, "claims are per consumer")

	require.NoError(t, manager.Delete(ctx, "aggregation", key))
	seen, err = manager.CheckAndMarkProcessed(ctx, "aggregation", key)
	require.NoError(t, err)
	assert.False(t, seen, "released claims can be taken again")
}

func TestManagerRejectsBlankNamesAndSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.CheckAndMarkProcessed(ctx, " ", "k")
	assert.Error(t, err)
	_, err = manager.NextAttempt(ctx, "payments", "")
	assert.Error(t, err)

	store.err = errors.New("connection refused")
	_, err = manager.CheckAndMarkProcessed(ctx, "aggregation", "k")
	assert.ErrorIs(t, err, store.err)
}

func TestAttemptCounterRestartsAfterClear(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := manager.NextAttempt(ctx, "payments", "msg-1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Hour, store.ttls["pos:idempotency:evt:attempts:payments:msg-1"])

	require.NoError(t, manager.ClearAttempts(ctx, "payments", "msg-1"))
	got, err := manager.NextAttempt(ctx, "payments", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}
