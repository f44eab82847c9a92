package transport

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/kafka"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

func TestOpenKafkaDoesNotDial(t *testing.T) {
	cfg := &config.Config{
		Broker: config.BrokerConfig{Driver: "KAFKA"},
		Kafka:  config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "order-service"},
	}
	conn, err := Open(context.Background(), cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	assert.Equal(t, config.BrokerDriverKafka, conn.Driver)
	assert.Nil(t, conn.Ping)
	assert.IsType(t, &kafka.Broker{}, conn.Broker)
	assert.NoError(t, conn.Close())
}

func TestOpenPubSubNeedsProject(t *testing.T) {
	cfg := &config.Config{Broker: config.BrokerConfig{Driver: config.BrokerDriverPubSub}}
	_, err := Open(context.Background(), cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	assert.Error(t, err)
}

func TestCloseNilConnection(t *testing.T) {
	var conn *Connection
	assert.NoError(t, conn.Close())
}
