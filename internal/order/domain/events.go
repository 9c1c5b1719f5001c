package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventTypeOrderCreated = "OrderCreated"

// OrderCreated is the event the stock service consumes.
type OrderCreated struct {
	OrderID     uuid.UUID       `json:"orderId"`
	CustomerID  uuid.UUID       `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []OrderItem     `json:"items"`
}

func (o Order) Created() OrderCreated {
	return OrderCreated{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.Total,
		Items:       o.Items,
	}
}
