package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id       UUID PRIMARY KEY,
	name     TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	price    NUMERIC(10, 2) NOT NULL
);

CREATE TABLE IF NOT EXISTS inbox_messages (
	id           UUID PRIMARY KEY,
	message_id   UUID NOT NULL,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ,
	status       TEXT NOT NULL CHECK (status IN ('Processing', 'Processed', 'Failed'))
);

CREATE UNIQUE INDEX IF NOT EXISTS inbox_messages_message_id_key ON inbox_messages (message_id);
`

// Migrate creates the stock tables when they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate stock schema: %w", err)
	}
	return nil
}

// DemoProducts are the products seeded for local runs.
func DemoProducts() []domain.StockItem {
	return []domain.StockItem{
		{
			ID:       uuid.MustParse("f0e5b7c8-d1a2-3e4f-5b6c-7d8e9f0a1b2c"),
			Name:     "Test Product 1",
			Quantity: 1_000_000,
			Price:    decimal.RequireFromString("10.00"),
		},
		{
			ID:       uuid.MustParse("a1b2c3d4-e5f6-7a8b-9c0d-1e2f3a4b5c6d"),
			Name:     "Test Product 2",
			Quantity: 1_000_000,
			Price:    decimal.RequireFromString("5.00"),
		},
	}
}

// Seed inserts items that do not exist yet.
func Seed(ctx context.Context, pool *pgxpool.Pool, items ...domain.StockItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO products (id, name, quantity, price) VALUES ($1, $2, $3, $4::text::numeric)
			ON CONFLICT (id) DO NOTHING`, item.ID, item.Name, item.Quantity, item.Price.String())
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	return nil
}
