package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	tracerName            = "github.com/norberto-e-888/pos-app/outbox-publisher"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config        config.OutboxConfig
	Logger        *logger.Logger
	DB            dbClient
	Publisher     broker.Publisher
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.RelayMetrics
	// BrokerPing is optional; it gates startup on the broker being reachable.
	BrokerPing func(context.Context) error
}

// Service relays committed outbox rows to the broker. A row is marked published only
// after the broker acknowledged it, inside the transaction that locked it, so a crash
// in between leaves the row pending and it is sent again.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	publisher    broker.Publisher
	registry     registryResolver
	dlq          dlqRepository
	metrics      *metrics.RelayMetrics
	brokerPing   func(context.Context) error
	tracer       trace.Tracer
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
	sleep        func(context.Context, time.Duration) error
}

// batchResult reports what one pass over the outbox did. failed counts rows the broker
// refused that stay pending for a later attempt.
type batchResult struct {
	fetched int
	failed  int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("broker publisher is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}

	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		publisher:    params.Publisher,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		brokerPing:   params.BrokerPing,
		tracer:       otel.Tracer(tracerName),
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        sleepContext,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if s.brokerPing != nil {
		if err := pingDependency(ctx, s.logg, "broker", s.brokerPing); err != nil {
			return err
		}
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		started := time.Now()
		result, err := s.processBatch(ctx)
		s.metrics.ObserveBatch(time.Since(started))
		if err != nil || result.failed > 0 {
			if err != nil {
				s.logg.Error(ctx, "outbox publisher batch error", err)
			}
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if result.fetched > 0 {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch relays one locked batch. Rows of an aggregate that follow a row which
// could not be sent are left for a later batch so consumers see each aggregate's
// events in order. A row the broker refused makes the caller back off before the
// next batch.
func (s *Service) processBatch(ctx context.Context) (batchResult, error) {
	var result batchResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		result.fetched = len(events)
		blocked := map[string]struct{}{}
		for _, event := range events {
			key := aggregateKey(event)
			if _, ok := blocked[key]; ok {
				continue
			}

			resolved, err := s.registry.Resolve(event)
			if err != nil {
				if markErr := s.handleTerminal(ctx, tx, event, enums.DLQReasonNonRetryable, err, "", nil); markErr != nil {
					return markErr
				}
				continue
			}

			fields := s.eventFields(event, resolved.Envelope, resolved.Topic)
			if err := s.publishResolved(ctx, event, resolved); err != nil {
				var nonRetry registry.NonRetryableError
				if errors.As(err, &nonRetry) {
					if markErr := s.handleTerminal(ctx, tx, event, enums.DLQReasonNonRetryable, err, resolved.Topic, fields); markErr != nil {
						return markErr
					}
					continue
				}

				nextAttempt := event.AttemptCount + 1
				fields["attempt_count"] = nextAttempt

				if nextAttempt >= s.maxAttempts {
					fields["terminal_reason"] = "max_attempts"
					terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
					if markErr := s.handleTerminal(ctx, tx, event, enums.DLQReasonMaxAttempts, terminalErr, resolved.Topic, fields); markErr != nil {
						return markErr
					}
					continue
				}

				blocked[key] = struct{}{}
				result.failed++
				ctxWithFields := s.logg.WithFields(ctx, fields)
				ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
				s.logg.Warn(ctxWithFields, "outbox publish failed")
				s.metrics.IncFailed(string(event.EventType))
				if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
				}
				continue
			}

			if markErr := s.repo.MarkPublishedTx(tx, event.ID, s.now()); markErr != nil {
				return fmt.Errorf("mark published %s: %w", event.ID, markErr)
			}
			s.metrics.IncPublished(string(event.EventType))
			s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		}
		return nil
	})
	if err != nil {
		return batchResult{}, err
	}
	return result, nil
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.DLQErrorReason, err error, topic string, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{}, topic)
	}
	fields["error_reason"] = reason
	ctxWithFields := s.logg.WithFields(ctx, fields)
	ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox event will not be retried")

	dlqEntry := models.OutboxDLQ{
		EventID:             event.ID,
		EventType:           event.EventType,
		Exchange:            event.Exchange,
		RoutingKey:          event.RoutingKey,
		AggregateCollection: event.AggregateCollection,
		AggregateID:         event.AggregateID,
		Payload:             event.Payload,
		ErrorReason:         reason,
		ErrorMessage:        dlqErrorMessage(err),
		AttemptCount:        event.AttemptCount,
		FailedAt:            s.now(),
	}
	if dlqErr := s.dlq.InsertTx(tx, dlqEntry); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func dlqErrorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// publishResolved sends the stored envelope unchanged and waits for the broker's ack.
func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	ctx, span := s.tracer.Start(ctx, "outbox.publish "+string(event.EventType),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", resolved.Topic),
			attribute.String("messaging.message.id", resolved.Envelope.EventID),
		))
	defer span.End()

	attrs := messageAttributes(event, resolved)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	err := s.publisher.Publish(publishCtx, resolved.Topic, broker.Message{
		ID:          resolved.Envelope.EventID,
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: event.AggregateID,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	eventID := resolved.Envelope.EventID
	if eventID == "" {
		eventID = event.ID.String()
	}
	return map[string]string{
		broker.AttrEventID:             eventID,
		broker.AttrEventType:           string(event.EventType),
		broker.AttrExchange:            string(event.Exchange),
		broker.AttrRoutingKey:          event.RoutingKey,
		broker.AttrAggregateCollection: event.AggregateCollection,
		broker.AttrAggregateID:         event.AggregateID,
		broker.AttrCreatedAt:           event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func aggregateKey(event models.OutboxEvent) string {
	if event.AggregateID == "" {
		return "row:" + event.ID.String()
	}
	return event.AggregateCollection + ":" + event.AggregateID
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":            event.ID.String(),
		"event_type":           event.EventType,
		"exchange":             event.Exchange,
		"routing_key":          event.RoutingKey,
		"aggregate_collection": event.AggregateCollection,
		"aggregate_id":         event.AggregateID,
		"batch_size":           s.batchSize,
		"attempt_count":        event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
