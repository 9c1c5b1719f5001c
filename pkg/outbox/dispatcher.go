package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/pkg/tracing"
)

const (
	HeaderMessageID = "message_id"
	HeaderEventType = "event_type"
)

type Dispatcher struct {
	log      *zap.Logger
	producer tracing.Producer
}

// NewDispatcher writes events through producer, which owns the topic.
func NewDispatcher(log *zap.Logger, producer tracing.Producer) *Dispatcher {
	return &Dispatcher{log: log, producer: producer}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := make([]kafka.Header, 0, len(event.Headers)+2)
	for k, v := range event.Headers {
		if k == HeaderMessageID || k == HeaderEventType {
			continue
		}
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers,
		kafka.Header{Key: HeaderMessageID, Value: []byte(event.ID.String())},
		kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)},
	)

	// resume the trace of the request that wrote the row
	if event.Traceparent != "" {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{"traceparent": event.Traceparent})
	}

	msg := kafka.Message{
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessage(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", zap.String("event_id", event.ID.String()), zap.Error(err))
		return err
	}
	d.log.Debug("outbox dispatched", zap.String("event_id", event.ID.String()), zap.String("type", event.Type))
	return nil
}
