package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

// InboxLedger owns inbox records. Every call runs inside the caller's
// transaction handle T and never commits on its own.
type InboxLedger[T any] interface {
	Find(ctx context.Context, tx T, messageID uuid.UUID) (*domain.InboxRecord, error)
	// Begin returns a Processing record for entry, or one of
	// domain.ErrAlreadyProcessed, domain.ErrAlreadyInFlight, domain.ErrAlreadyRejected.
	Begin(ctx context.Context, tx T, entry domain.InboxEntry) (domain.InboxRecord, error)
	Complete(ctx context.Context, tx T, record domain.InboxRecord) error
	// Fail stores record as Failed, inserting it when it no longer exists.
	// It returns domain.ErrAlreadyProcessed instead of overwriting a Processed record.
	Fail(ctx context.Context, tx T, record domain.InboxRecord) error
}

// StockLedger owns stock items.
type StockLedger[T any] interface {
	Fetch(ctx context.Context, tx T, productID uuid.UUID) (domain.StockItem, error)
	Decrement(ctx context.Context, tx T, productID uuid.UUID, quantity int) error
}

// TxCoordinator runs fn in one unit of work: commit when fn returns nil,
// rollback otherwise. A started transaction is never abandoned halfway
// because the caller's context was cancelled.
type TxCoordinator[T any] interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx T) error) error
}

// ProcessedCache is a best-effort marker of already processed message ids.
type ProcessedCache interface {
	Seen(ctx context.Context, messageID uuid.UUID) (bool, error)
	Mark(ctx context.Context, messageID uuid.UUID) error
}

type Recorder interface {
	ObserveOutcome(kind domain.OutcomeKind, elapsed time.Duration)
}
