package kafka

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/config"
)

func TestMessageRoundTripKeepsAttributesAndKey(t *testing.T) {
	in := broker.Message{
		ID:          "evt-1",
		Data:        []byte(`{"version":1}`),
		OrderingKey: "order-42",
		Attributes: map[string]string{
			broker.AttrEventType:  "order.placed",
			broker.AttrRoutingKey: "us.ca.sf.94103.online",
		},
	}

	km := toKafkaMessage(in)
	assert.Equal(t, []byte("order-42"), km.Key)

	km.Topic = "order"
	out := fromKafkaMessage(km)
	assert.Equal(t, "evt-1", out.ID)
	assert.Equal(t, in.Data, out.Data)
	assert.Equal(t, in.OrderingKey, out.OrderingKey)
	assert.Equal(t, in.Attributes, out.Attributes)
}

func TestFromKafkaMessageFallsBackToOffsetID(t *testing.T) {
	out := fromKafkaMessage(kafkago.Message{Topic: "payment", Partition: 2, Offset: 17})
	assert.Equal(t, "payment/2/17", out.ID)
}

func TestNewBrokerValidatesConfig(t *testing.T) {
	_, err := NewBroker(config.KafkaConfig{GroupID: "g"}, nil)
	require.Error(t, err)
	_, err = NewBroker(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)
}

func TestPublishAfterCloseFails(t *testing.T) {
	b, err := NewBroker(config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	err = b.Publish(context.Background(), "order", broker.Message{})
	require.ErrorIs(t, err, broker.ErrPublisherClosed)
}
