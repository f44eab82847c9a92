// Package transport opens the broker selected by POS_BROKER_DRIVER.
package transport

import (
	"context"
	"fmt"

	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/kafka"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/pubsub"
)

// Broker is both sides of the configured transport.
type Broker interface {
	broker.Publisher
	broker.Subscriber
}

// Connection is an opened broker plus its readiness check. Ping is nil when the driver
// has no cheap way to check connectivity.
type Connection struct {
	Broker Broker
	Ping   func(context.Context) error
	Driver string
}

func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Connection, error) {
	if cfg.Broker.UsesKafka() {
		b, err := kafka.NewBroker(cfg.Kafka, logg)
		if err != nil {
			return nil, fmt.Errorf("kafka broker: %w", err)
		}
		logg.Info(ctx, "using kafka broker")
		return &Connection{Broker: b, Driver: config.BrokerDriverKafka}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	logg.Info(ctx, "using pubsub broker")
	return &Connection{
		Broker: pubsub.NewBroker(client),
		Ping:   client.Ping,
		Driver: config.BrokerDriverPubSub,
	}, nil
}

// Close releases the broker. Safe on a nil connection.
func (c *Connection) Close() error {
	if c == nil || c.Broker == nil {
		return nil
	}
	return c.Broker.Close()
}
