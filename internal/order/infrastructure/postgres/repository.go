package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/order/application"
	"github.com/dmehra2102/stock-inbox/internal/order/domain"
)

type Repository struct {
	log  *zap.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *zap.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) SaveWithOutbox(ctx context.Context, o domain.Order, msg application.OutboxMessage) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6)`,
		o.ID, o.CustomerID, o.Total.String(), string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, line_no, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5::text::numeric)`,
			o.ID, i, item.ProductID, item.Quantity, item.Price.String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, 'order', $2, $3, $4, $5, $6, 'pending')`,
		uuid.New(), o.ID.String(), msg.Type, msg.Payload, headers, msg.Traceparent)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.log.Debug("order saved", zap.String("order_id", o.ID.String()), zap.Int("items", len(o.Items)))
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, total_amount::text, status, created_at, updated_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.CustomerID, &total, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("order %s total: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, price::text
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item  domain.OrderItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return domain.Order{}, err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, fmt.Errorf("order %s item price: %w", id, err)
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}
