package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventTypeOrderCreated is the event_type tag carried by order creation events.
const EventTypeOrderCreated = "OrderCreated"

// OrderCreated is published by the order service once an order is accepted.
// Field names are the wire contract shared with the producer.
type OrderCreated struct {
	OrderID     uuid.UUID       `json:"orderId"`
	CustomerID  uuid.UUID       `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []OrderItem     `json:"items"`
}

type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
