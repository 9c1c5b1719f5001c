// Package memory keeps inbox records and stock items in process memory.
// It honours the same contracts as the postgres ledgers and lets tests
// inject technical failures at any step.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

// Op names a ledger step that can be made to fail.
type Op string

const (
	OpFind      Op = "find"
	OpBegin     Op = "begin"
	OpComplete  Op = "complete"
	OpFail      Op = "fail"
	OpFetch     Op = "fetch"
	OpDecrement Op = "decrement"
	OpCommit    Op = "commit"
)

type Store struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.StockItem
	inbox    map[uuid.UUID]domain.InboxRecord
	claims   map[uuid.UUID]*Tx
	faults   map[Op][]error

	// stock stands in for row locks: a transaction holds it from its first
	// stock access until it ends.
	stock sync.Mutex

	reopenFailed bool
	now          func() time.Time
}

type StoreOption func(*Store)

// WithReopenFailed lets Begin reset a Failed record to Processing.
func WithReopenFailed(reopen bool) StoreOption {
	return func(s *Store) { s.reopenFailed = reopen }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		products: make(map[uuid.UUID]domain.StockItem),
		inbox:    make(map[uuid.UUID]domain.InboxRecord),
		claims:   make(map[uuid.UUID]*Tx),
		faults:   make(map[Op][]error),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put inserts or replaces a stock item outside any transaction.
func (s *Store) Put(items ...domain.StockItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.products[item.ID] = item
	}
}

// InjectFault makes the next call of op fail with err. Faults queue up.
func (s *Store) InjectFault(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

func (s *Store) fault(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return fmt.Errorf("memory %s: %w", op, queue[0])
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (domain.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.products[id]
	if !ok {
		return domain.StockItem{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return item, nil
}

func (s *Store) GetInboxRecord(_ context.Context, messageID uuid.UUID) (domain.InboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.inbox[messageID]
	if !ok {
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrInboxRecordNotFound, messageID)
	}
	return rec, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Tx is the unit of work handed to ledger calls. Writes stay staged until commit.
type Tx struct {
	store       *Store
	inbox       map[uuid.UUID]domain.InboxRecord
	stock       map[uuid.UUID]domain.StockItem
	stockLocked bool
	done        bool
}

func (s *Store) begin() *Tx {
	return &Tx{
		store: s,
		inbox: make(map[uuid.UUID]domain.InboxRecord),
		stock: make(map[uuid.UUID]domain.StockItem),
	}
}

func (tx *Tx) lockStock() {
	if !tx.stockLocked {
		tx.store.stock.Lock()
		tx.stockLocked = true
	}
}

func (tx *Tx) commit() error {
	if err := tx.store.fault(OpCommit); err != nil {
		tx.rollback()
		return err
	}
	s := tx.store
	s.mu.Lock()
	for id, rec := range tx.inbox {
		s.inbox[id] = rec
	}
	for id, item := range tx.stock {
		s.products[id] = item
	}
	s.mu.Unlock()
	tx.release()
	return nil
}

func (tx *Tx) rollback() {
	tx.release()
}

func (tx *Tx) release() {
	if tx.done {
		return
	}
	tx.done = true
	s := tx.store
	s.mu.Lock()
	for id, owner := range s.claims {
		if owner == tx {
			delete(s.claims, id)
		}
	}
	s.mu.Unlock()
	if tx.stockLocked {
		tx.stockLocked = false
		s.stock.Unlock()
	}
}

// Coordinator runs transactions against a Store.
type Coordinator struct {
	store *Store
}

func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{store: store}
}

func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx := c.store.begin()
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return tx.commit()
}
