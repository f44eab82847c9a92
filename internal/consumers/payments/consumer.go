// Package payments consumes payment results and drives the order state machine and the
// customer aggregation from them.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/norberto-e-888/pos-app/internal/aggregation"
	"github.com/norberto-e-888/pos-app/internal/orders"
	dbtypes "github.com/norberto-e-888/pos-app/pkg/db/types"
	"github.com/norberto-e-888/pos-app/pkg/broker"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/payloads"
)

// ConsumerName labels this consumer in redis keys, dead letters and metrics.
const ConsumerName = "orders.payments"

const tracerName = "github.com/norberto-e-888/pos-app/consumers/payments"

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

type orderTransitioner interface {
	ApplyPaymentOutcome(ctx context.Context, orderID uuid.UUID, outcome orders.PaymentOutcome, messageKey string) (*models.Order, error)
}

type paymentAggregator interface {
	OnPaymentCompleted(ctx context.Context, orderID uuid.UUID, messageKey string) error
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, messageKey string) (bool, error)
	Delete(ctx context.Context, consumer, messageKey string) error
	NextAttempt(ctx context.Context, consumer, messageID string) (int, error)
	ClearAttempts(ctx context.Context, consumer, messageID string) error
}

type deadLetterSink interface {
	RecordConsumerFailure(ctx context.Context, entry models.ConsumerDeadLetter) error
}

type payloadDecoder interface {
	Decode(eventType enums.EventType, version int, payload json.RawMessage) (interface{}, error)
}

// Binding is one queue-style subscription: messages of EventType whose routing key
// matches Pattern are handed to Apply. Every binding records its own processed
// messages so a partially handled delivery can be retried safely.
type Binding struct {
	Name      string
	EventType enums.EventType
	Pattern   string
	Apply     func(ctx context.Context, orderID uuid.UUID, messageKey string) error
}

// Bindings mirrors the exchange bindings of the order service.
func Bindings(orderSvc orderTransitioner, projector paymentAggregator) []Binding {
	outcome := func(o orders.PaymentOutcome) func(context.Context, uuid.UUID, string) error {
		return func(ctx context.Context, orderID uuid.UUID, key string) error {
			_, err := orderSvc.ApplyPaymentOutcome(ctx, orderID, o, key)
			return err
		}
	}
	return []Binding{
		{Name: "set-order-status.processing", EventType: enums.EventPaymentCheckoutCompleted, Pattern: "*.online", Apply: outcome(orders.PaymentCompleted)},
		{Name: "set-order-status.in-store-completed", EventType: enums.EventPaymentCheckoutCompleted, Pattern: "*.in-store", Apply: outcome(orders.PaymentCompleted)},
		{Name: "set-order-status.failed-payment", EventType: enums.EventPaymentCheckoutFailed, Pattern: "#", Apply: outcome(orders.PaymentFailed)},
		{Name: "update-customer-aggregation", EventType: enums.EventPaymentCheckoutCompleted, Pattern: "#", Apply: projector.OnPaymentCompleted},
	}
}

// Consumer settles every delivery exactly one way: handled, duplicate, retried or
// dead-lettered. It never drops a message silently.
type Consumer struct {
	bindings    []Binding
	decoders    payloadDecoder
	guard       idempotencyGuard
	dlq         deadLetterSink
	metrics     *metrics.ConsumerMetrics
	logg        *logger.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// ConsumerParams lists what NewConsumer needs.
type ConsumerParams struct {
	Bindings    []Binding
	Decoders    payloadDecoder
	Guard       idempotencyGuard
	DeadLetters deadLetterSink
	Metrics     *metrics.ConsumerMetrics
	Logger      *logger.Logger
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if len(params.Bindings) == 0 {
		return nil, errors.New("at least one binding is required")
	}
	if params.Decoders == nil {
		return nil, errors.New("payload decoders are required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if params.DeadLetters == nil {
		return nil, errors.New("dead-letter sink is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	c := &Consumer{
		bindings:    params.Bindings,
		decoders:    params.Decoders,
		guard:       params.Guard,
		dlq:         params.DeadLetters,
		metrics:     params.Metrics,
		logg:        params.Logger,
		maxAttempts: params.MaxAttempts,
		baseDelay:   params.BaseDelay,
		maxDelay:    params.MaxDelay,
		sleep:       sleepCtx,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	return c, nil
}

// Run receives from the subscription until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, sub broker.Subscriber, subscription string) error {
	c.logg.Info(c.logg.WithField(ctx, "subscription", subscription), "payments consumer started")
	return sub.Receive(ctx, subscription, c.Handle)
}

type inbound struct {
	eventType  enums.EventType
	routingKey string
	orderID    uuid.UUID
	messageKey string
}

// Handle processes one delivery. A nil return acks it; an error asks the broker to
// redeliver.
func (c *Consumer) Handle(ctx context.Context, msg broker.Message) error {
	started := time.Now()
	eventType := msg.Attr(broker.AttrEventType)
	if msg.Attributes != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Attributes))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "payments.consume "+eventType, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":  msg.ID,
		"event_type":  eventType,
		"routing_key": msg.Attr(broker.AttrRoutingKey),
	})

	in, err := c.parse(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "malformed payment message")
		return c.deadLetter(logCtx, msg, enums.DLQReasonMalformed, err, 1, started)
	}
	logCtx = c.logg.WithOrderID(logCtx, in.orderID.String())

	matched := c.match(in)
	if len(matched) == 0 {
		c.logg.Debug(logCtx, "no binding for payment message")
		c.observe(eventType, metrics.ResultIgnored, started)
		return nil
	}

	already, err := c.guard.CheckAndMarkProcessed(logCtx, ConsumerName, in.messageKey)
	if err != nil {
		// The durable processed_messages check still applies without the fast path.
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "idempotency fast path unavailable")
	} else if already {
		c.logg.Info(logCtx, "payment message already processed")
		c.observe(eventType, metrics.ResultDuplicate, started)
		return nil
	}

	if handleErr := c.apply(logCtx, matched, in); handleErr != nil {
		if err := c.guard.Delete(logCtx, ConsumerName, in.messageKey); err != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "release idempotency key failed")
		}
		return c.fail(logCtx, msg, handleErr, started)
	}

	c.clearAttempts(logCtx, msg)
	c.logg.Info(logCtx, "payment message handled")
	c.observe(eventType, metrics.ResultHandled, started)
	return nil
}

func (c *Consumer) parse(msg broker.Message) (inbound, error) {
	eventType := enums.EventType(strings.TrimSpace(msg.Attr(broker.AttrEventType)))
	if !eventType.IsValid() {
		return inbound{}, fmt.Errorf("unknown event type %q", eventType)
	}
	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return inbound{}, fmt.Errorf("decode envelope: %w", err)
	}
	version := envelope.Version
	if version == 0 {
		version = outbox.EnvelopeVersion
	}
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		return inbound{}, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	event, ok := decoded.(*payloads.PaymentCheckoutEvent)
	if !ok {
		return inbound{}, fmt.Errorf("unexpected payload %T for %s", decoded, eventType)
	}
	orderID, err := uuid.Parse(strings.TrimSpace(event.Metadata.OrderID))
	if err != nil {
		return inbound{}, fmt.Errorf("metadata.orderId: %w", err)
	}
	// Redeliveries keep the envelope's eventId. The broker id is the fallback for
	// producers that leave it blank.
	eventID := strings.TrimSpace(envelope.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.ID)
	}
	if eventID == "" {
		return inbound{}, errors.New("message carries neither an eventId nor a broker id")
	}
	return inbound{
		eventType:  eventType,
		routingKey: strings.TrimSpace(msg.Attr(broker.AttrRoutingKey)),
		orderID:    orderID,
		messageKey: outbox.MessageKey(orderID.String(), string(eventType), eventID),
	}, nil
}

func (c *Consumer) match(in inbound) []Binding {
	var out []Binding
	for _, b := range c.bindings {
		if b.EventType == in.eventType && broker.MatchRoutingKey(b.Pattern, in.routingKey) {
			out = append(out, b)
		}
	}
	return out
}

func (c *Consumer) apply(ctx context.Context, bindings []Binding, in inbound) error {
	for _, b := range bindings {
		err := b.Apply(ctx, in.orderID, in.messageKey)
		switch {
		case err == nil:
		case errors.Is(err, orders.ErrAlreadyApplied), errors.Is(err, aggregation.ErrAlreadyProcessed):
			c.logg.Info(c.logg.WithField(ctx, "binding", b.Name), "binding already applied")
		default:
			return fmt.Errorf("%s: %w", b.Name, err)
		}
	}
	return nil
}

// fail decides between a redelivery and a dead letter.
func (c *Consumer) fail(ctx context.Context, msg broker.Message, handleErr error, started time.Time) error {
	attempt := msg.DeliveryAttempt
	if attempt == 0 {
		n, err := c.guard.NextAttempt(ctx, ConsumerName, msg.ID)
		if err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "attempt counter unavailable")
			n = 1
		}
		attempt = n
	}
	failCtx := c.logg.WithFields(ctx, map[string]any{"attempt": attempt, "max_attempts": c.maxAttempts})

	if !isRetryable(handleErr) {
		c.logg.Error(failCtx, "payment message cannot succeed", handleErr)
		return c.deadLetter(failCtx, msg, enums.DLQReasonNonRetryable, handleErr, attempt, started)
	}
	if attempt >= c.maxAttempts {
		c.logg.Error(failCtx, "payment message exhausted its attempts", handleErr)
		return c.deadLetter(failCtx, msg, enums.DLQReasonMaxAttempts, handleErr, attempt, started)
	}

	c.logg.Warn(c.logg.WithField(failCtx, "error", handleErr.Error()), "payment message failed; redelivering")
	c.observe(msg.Attr(broker.AttrEventType), metrics.ResultRetried, started)
	if err := c.sleep(ctx, Backoff(attempt, c.baseDelay, c.maxDelay)); err != nil {
		return err
	}
	return handleErr
}

func (c *Consumer) deadLetter(ctx context.Context, msg broker.Message, reason enums.DLQErrorReason, cause error, attempts int, started time.Time) error {
	var attrs dbtypes.JSON
	if len(msg.Attributes) > 0 {
		if raw, err := json.Marshal(msg.Attributes); err == nil {
			attrs = dbtypes.JSON(raw)
		}
	}
	entry := models.ConsumerDeadLetter{
		Consumer:     ConsumerName,
		MessageID:    msg.ID,
		EventType:    msg.Attr(broker.AttrEventType),
		RoutingKey:   msg.Attr(broker.AttrRoutingKey),
		Payload:      msg.Data,
		Attributes:   attrs,
		Reason:       reason,
		ErrorMessage: cause.Error(),
		Attempts:     attempts,
	}
	if err := c.dlq.RecordConsumerFailure(ctx, entry); err != nil {
		// Keep the message on the broker until it can be parked.
		c.logg.Error(ctx, "record dead letter failed", err)
		return fmt.Errorf("record dead letter: %w", err)
	}
	c.clearAttempts(ctx, msg)
	c.observe(msg.Attr(broker.AttrEventType), metrics.ResultDeadLettered, started)
	return nil
}

// clearAttempts forgets the redis attempt counter once a message is settled. Brokers
// that report DeliveryAttempt never had one.
func (c *Consumer) clearAttempts(ctx context.Context, msg broker.Message) {
	if msg.DeliveryAttempt != 0 {
		return
	}
	if err := c.guard.ClearAttempts(ctx, ConsumerName, msg.ID); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "clear delivery attempts failed")
	}
}

func (c *Consumer) observe(eventType, result string, started time.Time) {
	c.metrics.Observe(ConsumerName, eventType, result, time.Since(started))
}

// isRetryable treats typed domain errors by their code and everything else (driver,
// network, context) as transient.
func isRetryable(err error) bool {
	if domainErr := pkgerrors.As(err); domainErr != nil {
		return pkgerrors.MetadataFor(domainErr.Code()).Retryable
	}
	return true
}

// Backoff doubles base per attempt and caps the result at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
