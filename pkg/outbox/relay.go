package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	// LockBatch leases up to batchSize pending rows, or rows whose lease
	// expired, to relayID.
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	// MarkFailed returns the row to pending until maxAttempts is reached.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxAttempts int) error
}

type Metrics interface {
	Dispatched(n int)
	Failed()
}

type Config struct {
	BatchSize   int
	Interval    time.Duration
	Lease       time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Interval <= 0 {
		c.Interval = 500 * time.Millisecond
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	return c
}

type Relay struct {
	log      *zap.Logger
	store    Store
	dispatch *Dispatcher
	relayID  string
	cfg      Config
	metrics  Metrics
}

func NewRelay(log *zap.Logger, store Store, dispatch *Dispatcher, relayID string, cfg Config, metrics Metrics) *Relay {
	return &Relay{
		log:      log.With(zap.String("relay_id", relayID)),
		store:    store,
		dispatch: dispatch,
		relayID:  relayID,
		cfg:      cfg.withDefaults(),
		metrics:  metrics,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping")
			return nil
		case <-t.C:
			if _, err := r.Tick(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("relay lock batch error", zap.Error(err))
			}
		}
	}
}

// Tick publishes one leased batch and reports how many events were sent.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if r.metrics != nil {
				r.metrics.Failed()
			}
			if err := r.store.MarkFailed(ctx, e.ID, err.Error(), r.cfg.MaxAttempts); err != nil {
				r.log.Error("relay mark failed error", zap.String("event_id", e.ID.String()), zap.Error(err))
			}
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			r.log.Error("relay mark sent error", zap.Error(err))
			return 0, nil
		}
		if r.metrics != nil {
			r.metrics.Dispatched(len(ids))
		}
	}
	return len(ids), nil
}
