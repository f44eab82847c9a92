package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	a, err := NewRedisLock(store, "pos:cron", time.Minute, "cron-a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	b, err := NewRedisLock(store, "pos:cron", time.Minute, "cron-b")
	if err != nil {
		t.Fatalf("lock b: %v", err)
	}

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected a to acquire, ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(store.values["pos:cron"], "cron-a/") {
		t.Fatalf("expected owner to name the instance, got %q", store.values["pos:cron"])
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatal("expected b to be excluded")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	if _, held := store.values["pos:cron"]; !held {
		t.Fatal("non-holder release must not delete the lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("expected b to acquire after release")
	}
}

func TestRedisLockLeavesExpiredTakeover(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, "pos:cron", time.Minute, "cron-a")
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	store.values["pos:cron"] = "cron-b/other"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["pos:cron"] != "cron-b/other" {
		t.Fatal("release must not remove another holder's lock")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute, ""); err == nil {
		t.Fatal("expected nil client to fail")
	}
	if _, err := NewRedisLock(newMemoryStore(), "", time.Minute, ""); err == nil {
		t.Fatal("expected empty key to fail")
	}
}
