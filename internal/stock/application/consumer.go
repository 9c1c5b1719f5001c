package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

// Delivery is one event handed over by the transport.
type Delivery struct {
	MessageID string
	EventType string
	Event     domain.OrderCreated
}

type Option func(*settings)

type settings struct {
	cache    ProcessedCache
	recorder Recorder
}

// WithProcessedCache enables the duplicate fast path in front of the store.
func WithProcessedCache(cache ProcessedCache) Option {
	return func(s *settings) { s.cache = cache }
}

func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// Consumer applies OrderCreated events to stock at most once per message id.
type Consumer[T any] struct {
	log   *zap.Logger
	tx    TxCoordinator[T]
	inbox InboxLedger[T]
	stock StockLedger[T]
	settings
}

func NewConsumer[T any](log *zap.Logger, tx TxCoordinator[T], inbox InboxLedger[T], stock StockLedger[T], opts ...Option) *Consumer[T] {
	c := &Consumer[T]{
		log:   log,
		tx:    tx,
		inbox: inbox,
		stock: stock,
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	return c
}

// Handle drives one delivery to a terminal outcome. Business rejections are
// handled here and reported as Rejected; only TechnicalFailure asks the
// transport to redeliver.
func (c *Consumer[T]) Handle(ctx context.Context, d Delivery) domain.Outcome {
	started := time.Now()
	out := c.handle(ctx, d)
	c.report(d, out, time.Since(started))
	return out
}

func (c *Consumer[T]) handle(ctx context.Context, d Delivery) domain.Outcome {
	messageID, err := domain.ParseMessageID(d.MessageID)
	if err != nil {
		return domain.Invalid(err)
	}
	if c.seen(ctx, messageID) {
		return domain.Duplicate("processed marker cached")
	}

	eventType := d.EventType
	if eventType == "" {
		eventType = domain.EventTypeOrderCreated
	}
	payload, err := json.Marshal(d.Event)
	if err != nil {
		return domain.TechnicalFailure(fmt.Errorf("snapshot payload: %w", err))
	}
	entry := domain.InboxEntry{MessageID: messageID, EventType: eventType, Payload: payload}

	var (
		record    domain.InboxRecord
		rejection error
	)
	err = c.tx.Run(ctx, func(ctx context.Context, tx T) error {
		rec, err := c.inbox.Begin(ctx, tx, entry)
		if err != nil {
			return err
		}
		record = rec

		if err := c.apply(ctx, tx, d.Event.Items); err != nil {
			if domain.IsRejection(err) {
				rejection = err
			}
			return err
		}
		return c.inbox.Complete(ctx, tx, rec)
	})

	switch {
	case err == nil:
		c.mark(ctx, messageID)
		return domain.Applied()
	case errors.Is(err, domain.ErrAlreadyProcessed):
		c.mark(ctx, messageID)
		return domain.Duplicate("already processed")
	case errors.Is(err, domain.ErrAlreadyRejected):
		return domain.Duplicate("already rejected")
	case errors.Is(err, domain.ErrAlreadyInFlight):
		return domain.Skipped("in flight elsewhere")
	case rejection != nil && errors.Is(err, rejection):
		return c.reject(ctx, record, rejection)
	default:
		return domain.TechnicalFailure(err)
	}
}

// apply decrements every line item in order. The first failure aborts the
// batch and the surrounding rollback undoes earlier decrements.
func (c *Consumer[T]) apply(ctx context.Context, tx T, items []domain.OrderItem) error {
	for _, item := range items {
		if err := c.stock.Decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// reject persists the Failed status in a transaction of its own, since the
// business transaction has already been rolled back.
func (c *Consumer[T]) reject(ctx context.Context, record domain.InboxRecord, cause error) domain.Outcome {
	err := c.tx.Run(ctx, func(ctx context.Context, tx T) error {
		return c.inbox.Fail(ctx, tx, record)
	})
	switch {
	case err == nil:
		return domain.Rejected(cause)
	case errors.Is(err, domain.ErrAlreadyProcessed):
		c.mark(ctx, record.MessageID)
		return domain.Duplicate("already processed")
	default:
		return domain.TechnicalFailure(fmt.Errorf("record rejection: %w", err))
	}
}

func (c *Consumer[T]) seen(ctx context.Context, messageID uuid.UUID) bool {
	if c.cache == nil {
		return false
	}
	ok, err := c.cache.Seen(ctx, messageID)
	if err != nil {
		c.log.Warn("processed cache lookup failed", zap.String("message_id", messageID.String()), zap.Error(err))
		return false
	}
	return ok
}

func (c *Consumer[T]) mark(ctx context.Context, messageID uuid.UUID) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Mark(ctx, messageID); err != nil {
		c.log.Warn("processed cache mark failed", zap.String("message_id", messageID.String()), zap.Error(err))
	}
}

func (c *Consumer[T]) report(d Delivery, out domain.Outcome, elapsed time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveOutcome(out.Kind, elapsed)
	}

	fields := []zap.Field{
		zap.String("message_id", d.MessageID),
		zap.String("order_id", d.Event.OrderID.String()),
		zap.String("event_type", d.EventType),
		zap.String("outcome", string(out.Kind)),
		zap.Duration("elapsed", elapsed),
	}
	if out.Reason != "" {
		fields = append(fields, zap.String("reason", out.Reason))
	}

	switch out.Kind {
	case domain.OutcomeTechnicalFailure:
		c.log.Error("order event failed, redelivery required", append(fields, zap.Error(out.Err))...)
	case domain.OutcomeRejected, domain.OutcomeInvalid:
		c.log.Warn("order event rejected", fields...)
	default:
		c.log.Info("order event handled", fields...)
	}
}
