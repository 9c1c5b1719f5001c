package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/stock/application"
	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
	"github.com/dmehra2102/stock-inbox/pkg/tracing"
)

const (
	HeaderMessageID = "message_id"
	HeaderEventType = "event_type"

	HeaderDLQReason   = "dlq_reason"
	HeaderDLQError    = "dlq_error"
	HeaderDLQAttempts = "dlq_attempts"
	HeaderDLQTopic    = "dlq_source_topic"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler interface {
	Handle(ctx context.Context, d application.Delivery) domain.Outcome
}

type Metrics interface {
	Retry()
	DeadLetter(reason string)
}

// RetryPolicy bounds in-process redelivery of technical failures before a
// message is dead-lettered.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewReader builds a consumer-group reader with manual commits.
func NewReader(brokers []string, topic, group, startOffset string) *kafka.Reader {
	offset := kafka.FirstOffset
	if strings.EqualFold(startOffset, "latest") {
		offset = kafka.LastOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: offset,
	})
}

// Consumer feeds order events from Kafka to a Handler and turns outcomes
// into commits, retries or dead letters.
type Consumer struct {
	log     *zap.Logger
	reader  Reader
	dlq     tracing.Producer
	handler Handler
	retry   RetryPolicy
	metrics Metrics
	tracer  trace.Tracer
}

func NewConsumer(log *zap.Logger, reader Reader, dlq tracing.Producer, handler Handler, retry RetryPolicy, metrics Metrics) *Consumer {
	return &Consumer{
		log:     log,
		reader:  reader,
		dlq:     dlq,
		handler: handler,
		retry:   retry,
		metrics: metrics,
		tracer:  otel.Tracer("stock-consumer"),
	}
}

// Run consumes until ctx is cancelled. An offset is committed only after its
// message reached a terminal outcome or the dead-letter topic.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	c.log.Info("stock consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("stock consumer stopping")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.log.Info("stock consumer stopping, offset left uncommitted",
					zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	eventType := headerValue(msg.Headers, HeaderEventType)
	if eventType == "" {
		eventType = domain.EventTypeOrderCreated
	}
	if eventType != domain.EventTypeOrderCreated {
		c.log.Debug("ignoring event", zap.String("event_type", eventType), zap.Int64("offset", msg.Offset))
		return c.commit(ctx, msg)
	}

	delivery, err := decode(msg, eventType)
	if err != nil {
		span.RecordError(err)
		return c.deadLetter(ctx, msg, "undecodable", err, 0)
	}
	span.SetAttributes(
		attribute.String("messaging.message.id", delivery.MessageID),
		attribute.String("order.id", delivery.Event.OrderID.String()),
	)

	out, attempts, err := c.handle(msgCtx, delivery)
	span.SetAttributes(attribute.String("stock.outcome", string(out.Kind)), attribute.Int("stock.attempts", attempts))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.deadLetter(ctx, msg, "retries_exhausted", err, attempts)
	}
	if out.Kind == domain.OutcomeInvalid {
		return c.deadLetter(ctx, msg, "invalid", out.Err, attempts)
	}
	return c.commit(ctx, msg)
}

// handle retries technical failures with exponential backoff.
func (c *Consumer) handle(ctx context.Context, d application.Delivery) (domain.Outcome, int, error) {
	var (
		out      domain.Outcome
		attempts int
	)
	op := func() error {
		attempts++
		if attempts > 1 && c.metrics != nil {
			c.metrics.Retry()
		}
		out = c.handler.Handle(ctx, d)
		if out.Retry() {
			return out.Err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.retry.MaxRetries), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Warn("technical failure, retrying",
			zap.String("message_id", d.MessageID),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	return out, attempts, err
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The inbox absorbs the redelivery this causes.
		c.log.Error("commit failed", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, reason string, cause error, attempts int) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	for _, h := range msg.Headers {
		// the dead-letter writer injects its own trace context
		if h.Key == "traceparent" || h.Key == "tracestate" {
			continue
		}
		headers = append(headers, h)
	}
	headers = append(headers,
		kafka.Header{Key: HeaderDLQReason, Value: []byte(reason)},
		kafka.Header{Key: HeaderDLQAttempts, Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: HeaderDLQTopic, Value: []byte(msg.Topic)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: HeaderDLQError, Value: []byte(cause.Error())})
	}

	dead := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := c.dlq.WriteMessage(ctx, dead); err != nil {
		return fmt.Errorf("dead-letter offset %d: %w", msg.Offset, errors.Join(err, cause))
	}
	if c.metrics != nil {
		c.metrics.DeadLetter(reason)
	}
	c.log.Warn("message dead-lettered",
		zap.String("reason", reason),
		zap.String("message_id", headerValue(msg.Headers, HeaderMessageID)),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	return c.commit(ctx, msg)
}

func decode(msg kafka.Message, eventType string) (application.Delivery, error) {
	var ev domain.OrderCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return application.Delivery{}, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return application.Delivery{
		MessageID: headerValue(msg.Headers, HeaderMessageID),
		EventType: eventType,
		Event:     ev,
	}, nil
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
