package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []uuid.UUID
	failed  map[uuid.UUID]string
}

func (s *memStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(batchSize, len(s.pending))
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = errMsg
	return nil
}

type recordingProducer struct {
	msgs   []kafka.Message
	ctxs   []context.Context
	failOn uuid.UUID
}

func (p *recordingProducer) WriteMessage(ctx context.Context, msg kafka.Message) error {
	for _, h := range msg.Headers {
		if h.Key == HeaderMessageID && string(h.Value) == p.failOn.String() {
			return errors.New("broker unavailable")
		}
	}
	p.msgs = append(p.msgs, msg)
	p.ctxs = append(p.ctxs, ctx)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type counters struct{ dispatched, failed int }

func (c *counters) Dispatched(n int) { c.dispatched += n }
func (c *counters) Failed()          { c.failed++ }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestTickPublishesWithMessageIDHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ok := Event{
		ID:          uuid.New(),
		AggregateID: "order-1",
		Type:        "OrderCreated",
		Payload:     []byte(`{"orderId":"x"}`),
		Headers:     map[string]string{"source": "order-service", HeaderMessageID: "spoofed"},
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	bad := Event{ID: uuid.New(), AggregateID: "order-2", Type: "OrderCreated"}

	store := &memStore{pending: []Event{ok, bad}, failed: map[uuid.UUID]string{}}
	producer := &recordingProducer{failOn: bad.ID}
	m := &counters{}
	relay := NewRelay(zap.NewNop(), store, NewDispatcher(zap.NewNop(), producer), "relay-1", Config{}, m)

	n, err := relay.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n != 1 || len(store.sent) != 1 || store.sent[0] != ok.ID {
		t.Fatalf("sent = %v (n=%d), want only %s", store.sent, n, ok.ID)
	}
	if _, failed := store.failed[bad.ID]; !failed {
		t.Fatalf("failed event %s was not marked", bad.ID)
	}
	if m.dispatched != 1 || m.failed != 1 {
		t.Fatalf("metrics = %+v", *m)
	}

	msg := producer.msgs[0]
	if got := header(msg, HeaderMessageID); got != ok.ID.String() {
		t.Fatalf("message_id header = %q, want %s", got, ok.ID)
	}
	if got := header(msg, HeaderEventType); got != "OrderCreated" {
		t.Fatalf("event_type header = %q", got)
	}
	if got := header(msg, "source"); got != "order-service" {
		t.Fatalf("custom header = %q", got)
	}
	if string(msg.Key) != "order-1" {
		t.Fatalf("key = %q", msg.Key)
	}

	sc := trace.SpanContextFromContext(producer.ctxs[0])
	if sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace id = %s, want the stored traceparent", sc.TraceID())
	}
}

func TestTickWithNothingPending(t *testing.T) {
	store := &memStore{failed: map[uuid.UUID]string{}}
	relay := NewRelay(zap.NewNop(), store, NewDispatcher(zap.NewNop(), &recordingProducer{}), "relay-1", Config{BatchSize: 10}, nil)

	n, err := relay.Tick(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("tick = %d, %v", n, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &memStore{pending: []Event{{ID: uuid.New(), Type: "OrderCreated"}}, failed: map[uuid.UUID]string{}}
	relay := NewRelay(zap.NewNop(), store, NewDispatcher(zap.NewNop(), &recordingProducer{}), "relay-1", Config{Interval: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		sent := len(store.sent)
		store.mu.Unlock()
		if sent == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("relay never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
