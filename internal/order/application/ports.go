package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-inbox/internal/order/domain"
)

// OutboxMessage is the event row written alongside the order.
type OutboxMessage struct {
	Type        string
	Payload     []byte
	Headers     map[string]string
	Traceparent string
}

type OrderRepository interface {
	SaveWithOutbox(ctx context.Context, o domain.Order, msg OutboxMessage) error
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
}
