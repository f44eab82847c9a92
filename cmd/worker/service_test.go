package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

type nopSubscriber struct{}

func (nopSubscriber) Receive(ctx context.Context, _ string, _ broker.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingConsumer struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (c *recordingConsumer) Run(ctx context.Context, sub broker.Subscriber, subscription string) error {
	c.mu.Lock()
	c.names = append(c.names, subscription)
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return sub.Receive(ctx, subscription, nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestRunStopsWhenAConsumerFails(t *testing.T) {
	failing := &recordingConsumer{err: errors.New("subscription gone")}
	healthy := &recordingConsumer{}
	svc, err := NewService(ServiceParams{
		Logger:     testLogger(),
		Subscriber: nopSubscriber{},
		Subscriptions: []Subscription{
			{Name: "a", Consumer: healthy},
			{Name: "b", Consumer: failing},
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.EqualError(t, err, "subscription gone")
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunReturnsCanceled(t *testing.T) {
	consumer := &recordingConsumer{}
	svc, err := NewService(ServiceParams{
		Logger:        testLogger(),
		Subscriber:    nopSubscriber{},
		Subscriptions: []Subscription{{Name: "payments", Consumer: consumer}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestRunRefusesWhenDependencyIsDown(t *testing.T) {
	consumer := &recordingConsumer{}
	svc, err := NewService(ServiceParams{
		Logger:        testLogger(),
		Subscriber:    nopSubscriber{},
		Subscriptions: []Subscription{{Name: "payments", Consumer: consumer}},
		Readiness: map[string]pinger{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.Empty(t, consumer.names)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger(), Subscriber: nopSubscriber{}})
	require.Error(t, err)
}
