// Package kafka is the alternative broker transport, selected with
// POS_BROKER_DRIVER=kafka. Topics carry the same names as the Pub/Sub topics.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const (
	defaultRedeliveryDelay = time.Second
	headerMessageID        = "message_id"
)

// Broker implements broker.Publisher and broker.Subscriber on kafka-go. Messages are
// keyed by ordering key so one aggregate always lands on one partition.
type Broker struct {
	brokers []string
	groupID string
	logg    *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafkago.Writer
	closed  bool
}

func NewBroker(cfg config.KafkaConfig, logg *logger.Logger) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka consumer group is required")
	}
	return &Broker{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		logg:    logg,
		writers: make(map[string]*kafkago.Writer),
	}, nil
}

func (b *Broker) writer(topic string) (*kafkago.Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, broker.ErrPublisherClosed
	}
	if w, ok := b.writers[topic]; ok {
		return w, nil
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(b.brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	b.writers[topic] = w
	return w, nil
}

// Publish returns once every in-sync replica acknowledged the write.
func (b *Broker) Publish(ctx context.Context, topic string, msg broker.Message) error {
	w, err := b.writer(topic)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, toKafkaMessage(msg))
}

// Receive consumes the topic named by subscription within the configured group. Kafka
// has no per-message nack, so a failed delivery is retried in place with an increasing
// DeliveryAttempt and the offset is only committed after the handler accepts it.
func (b *Broker) Receive(ctx context.Context, subscription string, handler broker.Handler) error {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: b.brokers,
		Topic:   subscription,
		GroupID: b.groupID,
	})
	defer reader.Close()

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch from %s: %w", subscription, err)
		}

		msg := fromKafkaMessage(km)
		for attempt := 1; ; attempt++ {
			msg.DeliveryAttempt = attempt
			if err := handler(ctx, msg); err == nil {
				break
			} else if b.logg != nil {
				logCtx := b.logg.WithFields(ctx, map[string]any{
					"topic":     subscription,
					"partition": km.Partition,
					"offset":    km.Offset,
					"attempt":   attempt,
				})
				b.logg.Warn(logCtx, "kafka delivery failed; redelivering")
			}
			if err := sleep(ctx, defaultRedeliveryDelay); err != nil {
				return err
			}
		}

		if err := reader.CommitMessages(ctx, km); err != nil {
			return fmt.Errorf("commit offset on %s: %w", subscription, err)
		}
	}
}

// Close flushes and closes every writer.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var errs error
	for topic, w := range b.writers {
		errs = multierr.Append(errs, w.Close())
		delete(b.writers, topic)
	}
	return errs
}

func toKafkaMessage(msg broker.Message) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	if msg.ID != "" {
		headers = append(headers, kafkago.Header{Key: headerMessageID, Value: []byte(msg.ID)})
	}
	return kafkago.Message{
		Key:     []byte(msg.OrderingKey),
		Value:   msg.Data,
		Headers: headers,
	}
}

func fromKafkaMessage(km kafkago.Message) broker.Message {
	attrs := make(map[string]string, len(km.Headers))
	id := ""
	for _, h := range km.Headers {
		if h.Key == headerMessageID {
			id = string(h.Value)
			continue
		}
		attrs[h.Key] = string(h.Value)
	}
	if id == "" {
		id = fmt.Sprintf("%s/%d/%d", km.Topic, km.Partition, km.Offset)
	}
	return broker.Message{
		ID:          id,
		Data:        km.Value,
		Attributes:  attrs,
		OrderingKey: string(km.Key),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
