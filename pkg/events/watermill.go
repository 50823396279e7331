// Package events provides a PostgreSQL-backed durable queue built on
// Watermill's SQL transport.
//
// Delivery semantics:
//   - Producer side: Publish hands the message to a durable SQL queue.
//     In forwarder mode the message lands in an intermediate queue first
//     and a background daemon forwards it to the target topic, so a crash
//     after Publish returns cannot lose it (at-least-once).
//   - Consumer side: Subscribe delivers batches. A handler error Nacks the
//     message and the queue redelivers it; after MaxReceiveCount failed
//     receives (or immediately for errors wrapped with Permanent) the
//     message is diverted to the DeadLetterer and acknowledged. Messages
//     are never silently dropped.
//
// Handlers must be idempotent: the queue guarantees at-least-once, not
// exactly-once, and gives no ordering guarantee across messages.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/itemflow/pkg/config"
	"github.com/ghuser/itemflow/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second
	forwarderTopic  = "_forwarder_queue" // internal hand-off topic for the Forwarder daemon
)

// BatchHandler processes a batch of messages and returns one result per
// message, index-aligned with msgs. nil means success; Permanent-wrapped
// errors are diverted without redelivery; any other error is retryable.
type BatchHandler func(ctx context.Context, msgs []*message.Message) []error

// EventBus is a PostgreSQL-backed queue with bounded redelivery and a
// dead-letter path. It uses FOR UPDATE SKIP LOCKED under the hood so
// concurrent worker instances never double-deliver within a consumer group.
type EventBus struct {
	publisher    message.Publisher
	subscriber   *watermillsql.Subscriber
	fwd          *forwarder.Forwarder // non-nil only after StartForwarder
	db           *sql.DB
	log          logger.Logger
	wg           sync.WaitGroup
	useForwarder bool

	counter     ReceiveCounter
	deadLetters DeadLetterer
	maxReceive  int
	batchSize   int
	batchWait   time.Duration
}

// Option customizes an EventBus.
type Option func(*EventBus)

// WithReceiveCounter wires a shared receive counter (Redis in production).
func WithReceiveCounter(rc ReceiveCounter) Option {
	return func(q *EventBus) { q.counter = rc }
}

// WithDeadLetterer wires the sink that stores exhausted messages.
func WithDeadLetterer(dl DeadLetterer) Option {
	return func(q *EventBus) { q.deadLetters = dl }
}

// NewEventBus opens a database connection from cfg.DatabaseURL and
// initializes a Watermill SQL publisher and subscriber. Queue tables are
// created automatically on first use.
//
// All instances with the same cfg.ServiceName share a ConsumerGroup, so
// each message is processed by exactly one instance.
func NewEventBus(cfg *config.Config, log logger.Logger, opts ...Option) (*EventBus, error) {
	return newEventBus(cfg, log, false, opts...)
}

// NewEventBusWithForwarder creates an EventBus whose Publish writes to a
// durable intermediate queue drained by the Forwarder daemon. Call
// StartForwarder(ctx) after creating the bus.
func NewEventBusWithForwarder(cfg *config.Config, log logger.Logger, opts ...Option) (*EventBus, error) {
	return newEventBus(cfg, log, true, opts...)
}

func newEventBus(cfg *config.Config, log logger.Logger, useForwarder bool, opts ...Option) (*EventBus, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("events: open db: %w", err)
	}

	wlog := &slogAdapter{log: log}

	pub, err := watermillsql.NewPublisher(
		db,
		watermillsql.PublisherConfig{
			SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		wlog,
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("events: new publisher: %w", err)
	}

	var publisher message.Publisher = pub
	if useForwarder {
		publisher = forwarder.NewPublisher(pub, forwarder.PublisherConfig{
			ForwarderTopic: forwarderTopic,
		})
	}

	sub, err := watermillsql.NewSubscriber(
		db,
		watermillsql.SubscriberConfig{
			SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
			ConsumerGroup:    cfg.ServiceName + "-consumer",
		},
		wlog,
	)
	if err != nil {
		_ = pub.Close()
		_ = db.Close()
		return nil, fmt.Errorf("events: new subscriber: %w", err)
	}

	q := &EventBus{
		publisher:    publisher,
		subscriber:   sub,
		db:           db,
		log:          log,
		useForwarder: useForwarder,
		counter:      NewMemoryReceiveCounter(),
		maxReceive:   cfg.EventMaxReceiveCount,
		batchSize:    cfg.EventBatchSize,
		batchWait:    cfg.EventBatchMaxWait,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.deadLetters == nil {
		q.deadLetters = &loggingDeadLetterer{log: log}
	}
	return q, nil
}

// StartForwarder starts the background daemon that drains the intermediate
// queue and publishes messages to their target topics. Must only be called
// once, on a bus created with NewEventBusWithForwarder.
func (q *EventBus) StartForwarder(ctx context.Context) error {
	if !q.useForwarder {
		return fmt.Errorf("events: StartForwarder called on non-forwarder EventBus")
	}
	if q.fwd != nil {
		return fmt.Errorf("events: forwarder already started")
	}

	wlog := &slogAdapter{log: q.log}

	fwdSub, err := watermillsql.NewSubscriber(
		q.db,
		watermillsql.SubscriberConfig{
			SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
			ConsumerGroup:    "forwarder-consumer",
		},
		wlog,
	)
	if err != nil {
		return fmt.Errorf("events: new forwarder subscriber: %w", err)
	}

	targetPub, err := watermillsql.NewPublisher(
		q.db,
		watermillsql.PublisherConfig{
			SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		wlog,
	)
	if err != nil {
		_ = fwdSub.Close()
		return fmt.Errorf("events: new forwarder target publisher: %w", err)
	}

	fwd, err := forwarder.NewForwarder(fwdSub, targetPub, wlog, forwarder.Config{
		ForwarderTopic: forwarderTopic,
	})
	if err != nil {
		_ = targetPub.Close()
		_ = fwdSub.Close()
		return fmt.Errorf("events: create forwarder: %w", err)
	}

	q.fwd = fwd

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.log.InfoContext(ctx, "events: forwarder started")
		if err := fwd.Run(ctx); err != nil {
			q.log.ErrorContext(ctx, "events: forwarder stopped with error", "error", err)
		} else {
			q.log.InfoContext(ctx, "events: forwarder stopped")
		}
	}()

	select {
	case <-fwd.Running():
	case <-ctx.Done():
		return fmt.Errorf("events: context cancelled waiting for forwarder: %w", ctx.Err())
	}

	return nil
}

// Publish sends one or more messages to the given topic. OTel trace context
// from ctx is injected into each message's metadata so the consumer can
// continue the span tree.
func (q *EventBus) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
	}
	if err := q.publisher.Publish(topic, msgs...); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic in batches of up to cfg.EventBatchSize messages,
// waiting at most cfg.EventBatchMaxWait after the first message before
// dispatching a partial batch. Each message's context carries the
// publisher's restored OTel trace.
//
// Per-message settlement, driven by the handler's index-aligned results:
//   - nil            → Ack, receive count cleared
//   - Permanent(err) → diverted to the dead-letter sink, then Ack
//   - other error    → Nack; the queue redelivers. After MaxReceiveCount
//     failed receives the message is diverted instead.
//
// Diversions and exhausted messages are reported on the returned channel,
// which callers must drain. All in-flight batches complete before Close
// returns.
func (q *EventBus) Subscribe(ctx context.Context, topic string, handler BatchHandler) (<-chan error, error) {
	ch, err := q.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe to %s: %w", topic, err)
	}

	errCh := make(chan error, 100)
	propagator := otel.GetTextMapPropagator()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(errCh)

		for {
			batch := collectBatch(ctx, ch, q.batchSize, q.batchWait)
			if len(batch) == 0 {
				return
			}

			for _, msg := range batch {
				carrier := propagation.MapCarrier{}
				for k, v := range msg.Metadata {
					carrier[k] = v
				}
				msg.SetContext(propagator.Extract(ctx, carrier))
			}

			results := handler(ctx, batch)
			for i, msg := range batch {
				var herr error
				if i < len(results) {
					herr = results[i]
				}
				if err := q.settle(ctx, topic, msg, herr); err != nil {
					select {
					case errCh <- err:
					default:
						q.log.ErrorContext(ctx, "events: error channel full, dropping error",
							"error", err, "topic", topic)
					}
				}
			}
		}
	}()

	return errCh, nil
}

// collectBatch blocks for the first message, then gathers up to size
// messages or until maxWait elapses. Returns nil when the channel closes or
// ctx is cancelled before the first message arrives.
func collectBatch(ctx context.Context, ch <-chan *message.Message, size int, maxWait time.Duration) []*message.Message {
	var first *message.Message
	select {
	case <-ctx.Done():
		return nil
	case m, ok := <-ch:
		if !ok {
			return nil
		}
		first = m
	}

	batch := []*message.Message{first}
	if size <= 1 {
		return batch
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for len(batch) < size {
		select {
		case <-ctx.Done():
			return batch
		case <-timer.C:
			return batch
		case m, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, m)
		}
	}
	return batch
}

// settle acks, nacks or diverts a single message based on the handler
// result. The returned error (if any) describes a dead-letter diversion and
// is surfaced to the subscriber's error channel.
func (q *EventBus) settle(ctx context.Context, topic string, msg *message.Message, herr error) error {
	if herr == nil {
		msg.Ack()
		if err := q.counter.Forget(ctx, msg.UUID); err != nil {
			q.log.WarnContext(ctx, "events: failed to clear receive count", "message_id", msg.UUID, "error", err)
		}
		return nil
	}

	count, err := q.counter.Incr(ctx, msg.UUID)
	if err != nil {
		// Cannot establish the receive count; redeliver rather than risk
		// discarding a message early.
		q.log.ErrorContext(ctx, "events: receive counter unavailable", "message_id", msg.UUID, "error", err)
		msg.Nack()
		return nil
	}

	permanent := errors.Is(herr, ErrPermanent)
	if !permanent && count < q.maxReceive {
		q.log.WarnContext(ctx, "events: handler failed, message will be redelivered",
			"topic", topic,
			"message_id", msg.UUID,
			"receive_count", count,
			"max_receive_count", q.maxReceive,
			"error", herr,
		)
		msg.Nack()
		return nil
	}

	dl := DeadLetter{
		Topic:        topic,
		MessageID:    msg.UUID,
		Payload:      msg.Payload,
		Metadata:     msg.Metadata,
		ReceiveCount: count,
		Reason:       herr.Error(),
	}
	if err := q.deadLetters.Divert(ctx, dl); err != nil {
		// Keep the message on the queue; it will be offered to the sink
		// again on the next receive.
		q.log.ErrorContext(ctx, "events: dead letter diversion failed",
			"topic", topic, "message_id", msg.UUID, "error", err)
		msg.Nack()
		return nil
	}

	msg.Ack()
	if err := q.counter.Forget(ctx, msg.UUID); err != nil {
		q.log.WarnContext(ctx, "events: failed to clear receive count", "message_id", msg.UUID, "error", err)
	}
	return fmt.Errorf("events: message %s on %s diverted to dead letter after %d receives: %w",
		msg.UUID, topic, count, herr)
}

// Ping checks the EventBus database connection health.
func (q *EventBus) Ping(ctx context.Context) error {
	if err := q.db.PingContext(ctx); err != nil {
		return fmt.Errorf("events: ping db: %w", err)
	}
	return nil
}

// Close gracefully shuts down the EventBus: stop subscriber, stop forwarder,
// wait for in-flight batches (30 s max), close publisher and database.
func (q *EventBus) Close() error {
	if err := q.subscriber.Close(); err != nil {
		return fmt.Errorf("events: close subscriber: %w", err)
	}

	if q.fwd != nil {
		if err := q.fwd.Close(); err != nil {
			return fmt.Errorf("events: close forwarder: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	select {
	case <-done:
	case <-ctx.Done():
		q.log.Error("events: timed out waiting for in-flight batches to complete")
	}

	if err := q.publisher.Close(); err != nil {
		return fmt.Errorf("events: close publisher: %w", err)
	}
	return q.db.Close()
}

// loggingDeadLetterer is the fallback sink when none is wired. It records
// the loss loudly instead of looping the message forever.
type loggingDeadLetterer struct{ log logger.Logger }

func (l *loggingDeadLetterer) Divert(ctx context.Context, dl DeadLetter) error {
	l.log.ErrorContext(ctx, "events: no dead letter sink configured, message dropped after logging",
		"topic", dl.Topic,
		"message_id", dl.MessageID,
		"receive_count", dl.ReceiveCount,
		"reason", dl.Reason,
	)
	return nil
}

// slogAdapter bridges logger.Logger to watermill.LoggerAdapter.
type slogAdapter struct{ log logger.Logger }

func (a *slogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(fieldsToArgs(fields), "error", err)...)
}
func (a *slogAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, fieldsToArgs(fields)...)
}
func (a *slogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldsToArgs(fields)...)
}
func (a *slogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldsToArgs(fields)...)
}
func (a *slogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &slogAdapter{log: a.log.With(fieldsToArgs(fields)...)}
}

func fieldsToArgs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
