package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusReserved OrderStatus = "reserved"
	StatusCanceled OrderStatus = "canceled"
)

var (
	ErrEmptyOrder    = errors.New("order has no items")
	ErrInvalidItem   = errors.New("invalid order item")
	ErrOrderNotFound = errors.New("order not found")
)

type Order struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customerId"`
	Items      []OrderItem     `json:"items"`
	Total      decimal.Decimal `json:"totalAmount"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// NewOrder validates items and prices the order as the sum of price times quantity.
func NewOrder(customerID uuid.UUID, items []OrderItem, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	total := decimal.Zero
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return Order{}, fmt.Errorf("%w: item %d has no product id", ErrInvalidItem, i)
		}
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item %d quantity %d", ErrInvalidItem, i, item.Quantity)
		}
		if item.Price.IsNegative() {
			return Order{}, fmt.Errorf("%w: item %d price %s", ErrInvalidItem, i, item.Price)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	now = now.UTC()
	return Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Items:      items,
		Total:      total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
