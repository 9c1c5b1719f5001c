package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

// Reader serves read-only lookups outside the consumer's transactions.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

func (r *Reader) GetProduct(ctx context.Context, id uuid.UUID) (domain.StockItem, error) {
	item, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT id, name, quantity, price::text FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockItem{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("get product: %w", err)
	}
	return item, nil
}

func (r *Reader) GetInboxRecord(ctx context.Context, messageID uuid.UUID) (domain.InboxRecord, error) {
	rec, err := scanInbox(r.pool.QueryRow(ctx,
		`SELECT `+inboxColumns+` FROM inbox_messages WHERE message_id = $1`, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrInboxRecordNotFound, messageID)
	}
	if err != nil {
		return domain.InboxRecord{}, fmt.Errorf("get inbox record: %w", err)
	}
	return rec, nil
}

func (r *Reader) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
