package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

type StockLedger struct{}

func NewStockLedger() *StockLedger { return &StockLedger{} }

// Fetch reads the product row and locks it until the transaction ends, so a
// following Decrement checks the quantity it is about to write.
func (l *StockLedger) Fetch(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (domain.StockItem, error) {
	item, err := scanProduct(tx.QueryRow(ctx,
		`SELECT id, name, quantity, price::text FROM products WHERE id = $1 FOR UPDATE`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockItem{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("fetch product %s: %w", productID, err)
	}
	return item, nil
}

func (l *StockLedger) Decrement(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error {
	item, err := l.Fetch(ctx, tx, productID)
	if err != nil {
		return err
	}
	if err := item.CheckDecrement(quantity); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement product %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("decrement product %s: row changed under lock", productID)
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.StockItem, error) {
	var (
		item  domain.StockItem
		price string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Quantity, &price); err != nil {
		return domain.StockItem{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	item.Price = p
	return item, nil
}
