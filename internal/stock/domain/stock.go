package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockItem struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// CheckDecrement validates that quantity units can be taken from the item
// without the stock going negative.
func (s StockItem) CheckDecrement(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: product %s quantity %d", ErrInvalidQuantity, s.ID, quantity)
	}
	if quantity > s.Quantity {
		return fmt.Errorf("%w: product %s available %d requested %d", ErrInsufficientStock, s.ID, s.Quantity, quantity)
	}
	return nil
}

// Decremented returns the item after taking quantity units. Callers must run
// CheckDecrement first.
func (s StockItem) Decremented(quantity int) StockItem {
	s.Quantity -= quantity
	return s
}
