package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Coordinator opens read committed transactions on the pool.
type Coordinator struct {
	log  *zap.Logger
	pool *pgxpool.Pool
	iso  pgx.TxIsoLevel
}

func NewCoordinator(log *zap.Logger, pool *pgxpool.Pool) *Coordinator {
	return &Coordinator{log: log, pool: pool, iso: pgx.ReadCommitted}
}

// Run executes fn within a transaction and commits when fn returns nil.
// Once begun, the transaction ignores cancellation of ctx so that it always
// ends in an explicit commit or rollback.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: c.iso})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			c.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
