package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/norberto-e-888/pos-app/pkg/db"
	dbtypes "github.com/norberto-e-888/pos-app/pkg/db/types"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const defaultTxMaxRetries = dbpkg.DefaultTxAttempts

// DomainEvent is one record to append to the outbox.
type DomainEvent struct {
	EventType           enums.EventType
	Exchange            enums.Exchange
	RoutingKey          string
	AggregateCollection enums.AggregateCollection
	AggregateID         string
	Actor               *ActorRef
	Data                any
	Version             int
	OccurredAt          time.Time
}

// UnitOfWork is the domain mutation Publish runs inside its transaction. Every read
// and write must go through tx.
type UnitOfWork func(ctx context.Context, tx *gorm.DB) (any, error)

// EventSpec says where the event produced by a unit of work goes.
type EventSpec struct {
	EventType  enums.EventType
	Exchange   enums.Exchange
	RoutingKey string
}

// PublishOption customises how Publish turns the work result into an event.
type PublishOption func(*publishOptions)

type publishOptions struct {
	transform   func(result any) (any, error)
	routingKey  func(result any) (string, error)
	collection  enums.AggregateCollection
	aggregateID func(result any) string
	actor       *ActorRef
}

// WithTransformPayload reshapes the work result into the event body.
func WithTransformPayload(fn func(result any) (any, error)) PublishOption {
	return func(o *publishOptions) { o.transform = fn }
}

// WithRoutingKeyFunc derives the routing key from the work result. It overrides
// EventSpec.RoutingKey.
func WithRoutingKeyFunc(fn func(result any) (string, error)) PublishOption {
	return func(o *publishOptions) { o.routingKey = fn }
}

// WithAggregate records which aggregate the event describes. The relay keeps events of
// one aggregate in order.
func WithAggregate(collection enums.AggregateCollection, id func(result any) string) PublishOption {
	return func(o *publishOptions) {
		o.collection = collection
		o.aggregateID = id
	}
}

func WithActor(actor ActorRef) PublishOption {
	return func(o *publishOptions) { o.actor = &actor }
}

type txRunner = dbpkg.TxRunner

// Service stages events atomically with the state change they describe.
type Service struct {
	tx         txRunner
	repo       *Repository
	logg       *logger.Logger
	maxRetries int
	now        func() time.Time
}

// ServiceParams lists what NewService needs.
type ServiceParams struct {
	Tx         txRunner
	Repository *Repository
	Logger     *logger.Logger
	MaxRetries int
	Now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	retries := params.MaxRetries
	if retries <= 0 {
		retries = defaultTxMaxRetries
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		tx:         params.Tx,
		repo:       params.Repository,
		logg:       params.Logger,
		maxRetries: retries,
		now:        now,
	}, nil
}

// Publish runs work and appends the event it produces in one transaction. Either both
// are committed or neither is. Transactions that lose a write conflict are rerun from
// scratch up to the configured number of attempts and then surface as CONFLICT. Any
// other error from work is returned unchanged.
func (s *Service) Publish(ctx context.Context, work UnitOfWork, spec EventSpec, opts ...PublishOption) (any, error) {
	if work == nil {
		return nil, errors.New("unit of work required")
	}
	options := publishOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var result any
	err := dbpkg.RetryTx(ctx, s.tx, dbpkg.RetryOptions{
		Attempts:  s.maxRetries,
		Operation: string(spec.EventType),
		Logger:    s.logg,
	}, func(tx *gorm.DB) error {
		res, err := work(ctx, tx)
		if err != nil {
			return err
		}
		event, err := s.eventFromResult(res, spec, options)
		if err != nil {
			return err
		}
		if err := s.Emit(ctx, tx, event); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Publisher is the surface domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, work UnitOfWork, spec EventSpec, opts ...PublishOption) (any, error)
}

// Publish is the typed form of Publisher.Publish.
func Publish[T any](ctx context.Context, s Publisher, work func(ctx context.Context, tx *gorm.DB) (T, error), spec EventSpec, opts ...PublishOption) (T, error) {
	var zero T
	res, err := s.Publish(ctx, func(ctx context.Context, tx *gorm.DB) (any, error) {
		return work(ctx, tx)
	}, spec, opts...)
	if err != nil {
		return zero, err
	}
	typed, _ := res.(T)
	return typed, nil
}

func (s *Service) eventFromResult(result any, spec EventSpec, options publishOptions) (DomainEvent, error) {
	data := result
	if options.transform != nil {
		transformed, err := options.transform(result)
		if err != nil {
			return DomainEvent{}, err
		}
		data = transformed
	}

	routingKey := spec.RoutingKey
	if options.routingKey != nil {
		key, err := options.routingKey(result)
		if err != nil {
			return DomainEvent{}, err
		}
		routingKey = key
	}

	event := DomainEvent{
		EventType:           spec.EventType,
		Exchange:            spec.Exchange,
		RoutingKey:          routingKey,
		AggregateCollection: options.collection,
		Actor:               options.actor,
		Data:                data,
	}
	if options.aggregateID != nil {
		event.AggregateID = options.aggregateID(result)
	}
	return event, nil
}

// Stage appends an event inside a transaction the caller already holds.
func (s *Service) Stage(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	return s.Emit(ctx, tx, event)
}

// Emit serialises the event into its envelope and inserts the outbox row through tx.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	if !event.Exchange.IsValid() {
		return fmt.Errorf("unknown exchange %q", event.Exchange)
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if event.Version == 0 {
		event.Version = EnvelopeVersion
	}

	id := uuid.New()
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    id.String(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		ID:                  id,
		EventType:           event.EventType,
		Exchange:            event.Exchange,
		RoutingKey:          strings.TrimSpace(event.RoutingKey),
		AggregateCollection: string(event.AggregateCollection),
		AggregateID:         event.AggregateID,
		Payload:             dbtypes.JSON(payloadJSON),
		CreatedAt:           event.OccurredAt,
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithEvent(ctx, envelope.EventID, string(event.EventType))
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"exchange":     event.Exchange,
			"routing_key":  row.RoutingKey,
			"aggregate_id": event.AggregateID,
		})
		s.logg.Debug(logCtx, "outbox event queued")
	}
	return nil
}

