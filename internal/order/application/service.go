package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-inbox/internal/order/domain"
)

type Service struct {
	repo OrderRepository
	now  func() time.Time
}

func NewService(repo OrderRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateOrder stores a pending order and its OrderCreated event in one
// transaction. Stock is reserved asynchronously by the stock service.
func (s *Service) CreateOrder(ctx context.Context, customerID uuid.UUID, items []domain.OrderItem, headers map[string]string, traceparent string) (domain.Order, error) {
	o, err := domain.NewOrder(customerID, items, s.now())
	if err != nil {
		return domain.Order{}, err
	}

	payload, err := json.Marshal(o.Created())
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode order event: %w", err)
	}
	msg := OutboxMessage{
		Type:        domain.EventTypeOrderCreated,
		Payload:     payload,
		Headers:     headers,
		Traceparent: traceparent,
	}
	if err := s.repo.SaveWithOutbox(ctx, o, msg); err != nil {
		return domain.Order{}, fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}
