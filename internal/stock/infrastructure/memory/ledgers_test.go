package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

func fixedClock() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }

func newEntry() domain.InboxEntry {
	return domain.InboxEntry{MessageID: uuid.New(), EventType: domain.EventTypeOrderCreated, Payload: []byte(`{}`)}
}

func TestBeginRejectsSecondClaim(t *testing.T) {
	store := NewStore(WithClock(fixedClock))
	inbox := NewInboxLedger(store)
	entry := newEntry()
	ctx := context.Background()

	holder := store.begin()
	if _, err := inbox.Begin(ctx, holder, entry); err != nil {
		t.Fatalf("first begin: %v", err)
	}

	other := store.begin()
	if _, err := inbox.Begin(ctx, other, entry); !errors.Is(err, domain.ErrAlreadyInFlight) {
		t.Fatalf("second begin err = %v, want ErrAlreadyInFlight", err)
	}
	other.rollback()
	holder.rollback()

	again := store.begin()
	defer again.rollback()
	if _, err := inbox.Begin(ctx, again, entry); err != nil {
		t.Fatalf("begin after rollback: %v", err)
	}
}

func TestBeginReportsTerminalStatus(t *testing.T) {
	ctx := context.Background()
	for _, tt := range []struct {
		status domain.InboxStatus
		reopen bool
		want   error
	}{
		{domain.InboxProcessed, false, domain.ErrAlreadyProcessed},
		{domain.InboxProcessed, true, domain.ErrAlreadyProcessed},
		{domain.InboxFailed, false, domain.ErrAlreadyRejected},
		{domain.InboxFailed, true, nil},
		{domain.InboxProcessing, false, domain.ErrAlreadyInFlight},
	} {
		store := NewStore(WithReopenFailed(tt.reopen))
		entry := newEntry()
		rec := domain.NewInboxRecord(entry, fixedClock())
		rec.Status = tt.status
		store.inbox[entry.MessageID] = rec

		tx := store.begin()
		got, err := NewInboxLedger(store).Begin(ctx, tx, entry)
		tx.rollback()
		if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
			t.Fatalf("status %s reopen %v: err = %v, want %v", tt.status, tt.reopen, err, tt.want)
		}
		if tt.want == nil && (got.Status != domain.InboxProcessing || got.ID != rec.ID) {
			t.Fatalf("reopened record = %+v", got)
		}
	}
}

func TestCompleteAndCommit(t *testing.T) {
	store := NewStore(WithClock(fixedClock))
	inbox := NewInboxLedger(store)
	entry := newEntry()

	err := NewCoordinator(store).Run(context.Background(), func(ctx context.Context, tx *Tx) error {
		rec, err := inbox.Begin(ctx, tx, entry)
		if err != nil {
			return err
		}
		return inbox.Complete(ctx, tx, rec)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rec, err := store.GetInboxRecord(context.Background(), entry.MessageID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.InboxProcessed || rec.ProcessedAt == nil || !rec.ProcessedAt.Equal(fixedClock()) {
		t.Fatalf("record = %+v", rec)
	}
}

func TestCompleteRequiresBeginInSameTx(t *testing.T) {
	store := NewStore()
	tx := store.begin()
	defer tx.rollback()
	rec := domain.NewInboxRecord(newEntry(), fixedClock())
	if err := NewInboxLedger(store).Complete(context.Background(), tx, rec); err == nil {
		t.Fatalf("complete without begin must fail")
	}
}

func TestFailNeverOverwritesProcessed(t *testing.T) {
	store := NewStore()
	entry := newEntry()
	rec := domain.NewInboxRecord(entry, fixedClock())
	rec.Status = domain.InboxProcessed
	store.inbox[entry.MessageID] = rec

	err := NewCoordinator(store).Run(context.Background(), func(ctx context.Context, tx *Tx) error {
		return NewInboxLedger(store).Fail(ctx, tx, rec)
	})
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("err = %v, want ErrAlreadyProcessed", err)
	}
	if got, _ := store.GetInboxRecord(context.Background(), entry.MessageID); got.Status != domain.InboxProcessed {
		t.Fatalf("status = %q, want Processed", got.Status)
	}
}

func TestFailInsertsMissingRecord(t *testing.T) {
	store := NewStore()
	rec := domain.NewInboxRecord(newEntry(), fixedClock())

	err := NewCoordinator(store).Run(context.Background(), func(ctx context.Context, tx *Tx) error {
		return NewInboxLedger(store).Fail(ctx, tx, rec)
	})
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, err := store.GetInboxRecord(context.Background(), rec.MessageID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.InboxFailed || got.ProcessedAt == nil {
		t.Fatalf("record = %+v", got)
	}
}

func TestDecrementStagesUntilCommit(t *testing.T) {
	store := NewStore()
	item := domain.StockItem{ID: uuid.New(), Name: "Mouse", Quantity: 10}
	store.Put(item)
	stock := NewStockLedger(store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := NewCoordinator(store).Run(ctx, func(ctx context.Context, tx *Tx) error {
		if err := stock.Decrement(ctx, tx, item.ID, 4); err != nil {
			return err
		}
		got, err := stock.Fetch(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if got.Quantity != 6 {
			t.Errorf("staged quantity = %d, want 6", got.Quantity)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got, _ := store.GetProduct(ctx, item.ID); got.Quantity != 10 {
		t.Fatalf("quantity after rollback = %d, want 10", got.Quantity)
	}

	err = NewCoordinator(store).Run(ctx, func(ctx context.Context, tx *Tx) error {
		if err := stock.Decrement(ctx, tx, item.ID, 4); err != nil {
			return err
		}
		return stock.Decrement(ctx, tx, item.ID, 7)
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if got, _ := store.GetProduct(ctx, item.ID); got.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", got.Quantity)
	}
}

func TestRunRollsBackOnPanic(t *testing.T) {
	store := NewStore()
	item := domain.StockItem{ID: uuid.New(), Quantity: 3}
	store.Put(item)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("panic must propagate")
			}
		}()
		_ = NewCoordinator(store).Run(context.Background(), func(ctx context.Context, tx *Tx) error {
			_ = NewStockLedger(store).Decrement(ctx, tx, item.ID, 1)
			panic("handler bug")
		})
	}()

	// the stock lock must have been released
	err := NewCoordinator(store).Run(context.Background(), func(ctx context.Context, tx *Tx) error {
		return NewStockLedger(store).Decrement(ctx, tx, item.ID, 3)
	})
	if err != nil {
		t.Fatalf("decrement after panic: %v", err)
	}
}

func TestFindSeesStagedAndCommittedRecords(t *testing.T) {
	store := NewStore()
	inbox := NewInboxLedger(store)
	entry := newEntry()
	ctx := context.Background()

	err := NewCoordinator(store).Run(ctx, func(ctx context.Context, tx *Tx) error {
		if rec, err := inbox.Find(ctx, tx, entry.MessageID); err != nil || rec != nil {
			t.Errorf("find before begin = %v, %v", rec, err)
		}
		if _, err := inbox.Begin(ctx, tx, entry); err != nil {
			return err
		}
		rec, err := inbox.Find(ctx, tx, entry.MessageID)
		if err != nil || rec == nil || rec.Status != domain.InboxProcessing {
			t.Errorf("staged find = %v, %v", rec, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	tx := store.begin()
	defer tx.rollback()
	rec, err := inbox.Find(ctx, tx, entry.MessageID)
	if err != nil || rec == nil || rec.Status != domain.InboxProcessing {
		t.Fatalf("committed find = %v, %v", rec, err)
	}
}
