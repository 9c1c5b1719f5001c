package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

type InboxLedger struct {
	store *Store
}

func NewInboxLedger(store *Store) *InboxLedger {
	return &InboxLedger{store: store}
}

func (l *InboxLedger) Find(_ context.Context, tx *Tx, messageID uuid.UUID) (*domain.InboxRecord, error) {
	if err := l.store.fault(OpFind); err != nil {
		return nil, err
	}
	if rec, ok := tx.inbox[messageID]; ok {
		return &rec, nil
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if rec, ok := l.store.inbox[messageID]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (l *InboxLedger) Begin(_ context.Context, tx *Tx, entry domain.InboxEntry) (domain.InboxRecord, error) {
	if err := l.store.fault(OpBegin); err != nil {
		return domain.InboxRecord{}, err
	}
	if rec, ok := tx.inbox[entry.MessageID]; ok {
		return rec, statusErr(rec.Status)
	}

	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.claims[entry.MessageID]; ok && owner != tx {
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrAlreadyInFlight, entry.MessageID)
	}

	rec, exists := s.inbox[entry.MessageID]
	switch {
	case !exists:
		rec = domain.NewInboxRecord(entry, s.now())
	case rec.Status == domain.InboxFailed && s.reopenFailed:
		rec.Status = domain.InboxProcessing
		rec.ProcessedAt = nil
	default:
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", statusErr(rec.Status), entry.MessageID)
	}

	s.claims[entry.MessageID] = tx
	tx.inbox[entry.MessageID] = rec
	return rec, nil
}

func statusErr(status domain.InboxStatus) error {
	switch status {
	case domain.InboxProcessed:
		return domain.ErrAlreadyProcessed
	case domain.InboxFailed:
		return domain.ErrAlreadyRejected
	case domain.InboxProcessing:
		return domain.ErrAlreadyInFlight
	}
	return nil
}

func (l *InboxLedger) Complete(_ context.Context, tx *Tx, record domain.InboxRecord) error {
	if err := l.store.fault(OpComplete); err != nil {
		return err
	}
	rec, ok := tx.inbox[record.MessageID]
	if !ok {
		return fmt.Errorf("complete %s: record not begun in this transaction", record.MessageID)
	}
	now := l.store.now().UTC()
	rec.Status = domain.InboxProcessed
	rec.ProcessedAt = &now
	tx.inbox[record.MessageID] = rec
	return nil
}

func (l *InboxLedger) Fail(_ context.Context, tx *Tx, record domain.InboxRecord) error {
	if err := l.store.fault(OpFail); err != nil {
		return err
	}
	s := l.store
	now := s.now().UTC()

	rec, staged := tx.inbox[record.MessageID]
	if !staged {
		s.mu.Lock()
		if owner, ok := s.claims[record.MessageID]; ok && owner != tx {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrAlreadyInFlight, record.MessageID)
		}
		current, exists := s.inbox[record.MessageID]
		if exists && current.Status == domain.InboxProcessed {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, record.MessageID)
		}
		if exists {
			rec = current
		} else {
			rec = record
		}
		s.claims[record.MessageID] = tx
		s.mu.Unlock()
	}

	rec.Status = domain.InboxFailed
	rec.ProcessedAt = &now
	tx.inbox[record.MessageID] = rec
	return nil
}

type StockLedger struct {
	store *Store
}

func NewStockLedger(store *Store) *StockLedger {
	return &StockLedger{store: store}
}

func (l *StockLedger) Fetch(_ context.Context, tx *Tx, productID uuid.UUID) (domain.StockItem, error) {
	if err := l.store.fault(OpFetch); err != nil {
		return domain.StockItem{}, err
	}
	return l.fetch(tx, productID)
}

func (l *StockLedger) fetch(tx *Tx, productID uuid.UUID) (domain.StockItem, error) {
	tx.lockStock()
	if item, ok := tx.stock[productID]; ok {
		return item, nil
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	item, ok := l.store.products[productID]
	if !ok {
		return domain.StockItem{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return item, nil
}

func (l *StockLedger) Decrement(_ context.Context, tx *Tx, productID uuid.UUID, quantity int) error {
	if err := l.store.fault(OpDecrement); err != nil {
		return err
	}
	item, err := l.fetch(tx, productID)
	if err != nil {
		return err
	}
	if err := item.CheckDecrement(quantity); err != nil {
		return err
	}
	tx.stock[productID] = item.Decremented(quantity)
	return nil
}
