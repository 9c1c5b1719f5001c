package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

const uniqueViolation = "23505"

const inboxColumns = `id, message_id, event_type, payload, received_at, processed_at, status`

type InboxLedger struct {
	reopenFailed bool
	now          func() time.Time
}

func NewInboxLedger(reopenFailed bool) *InboxLedger {
	return &InboxLedger{reopenFailed: reopenFailed, now: time.Now}
}

func (l *InboxLedger) Find(ctx context.Context, tx pgx.Tx, messageID uuid.UUID) (*domain.InboxRecord, error) {
	rec, err := scanInbox(tx.QueryRow(ctx, `SELECT `+inboxColumns+` FROM inbox_messages WHERE message_id = $1`, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find inbox record: %w", err)
	}
	return &rec, nil
}

// Begin locks an existing record or inserts a new one. A concurrent insert
// of the same message id blocks on the unique index until the other
// transaction ends and then fails with a unique violation, which maps to
// domain.ErrAlreadyInFlight.
func (l *InboxLedger) Begin(ctx context.Context, tx pgx.Tx, entry domain.InboxEntry) (domain.InboxRecord, error) {
	rec, err := scanInbox(tx.QueryRow(ctx,
		`SELECT `+inboxColumns+` FROM inbox_messages WHERE message_id = $1 FOR UPDATE`, entry.MessageID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return l.insert(ctx, tx, entry)
	case err != nil:
		return domain.InboxRecord{}, fmt.Errorf("lock inbox record: %w", err)
	}

	switch rec.Status {
	case domain.InboxProcessed:
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, entry.MessageID)
	case domain.InboxProcessing:
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrAlreadyInFlight, entry.MessageID)
	}
	if !l.reopenFailed {
		return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrAlreadyRejected, entry.MessageID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE inbox_messages SET status = $2, processed_at = NULL WHERE id = $1`,
		rec.ID, string(domain.InboxProcessing)); err != nil {
		return domain.InboxRecord{}, fmt.Errorf("reopen inbox record: %w", err)
	}
	rec.Status = domain.InboxProcessing
	rec.ProcessedAt = nil
	return rec, nil
}

func (l *InboxLedger) insert(ctx context.Context, tx pgx.Tx, entry domain.InboxEntry) (domain.InboxRecord, error) {
	rec := domain.NewInboxRecord(entry, l.now())
	_, err := tx.Exec(ctx, `
		INSERT INTO inbox_messages (id, message_id, event_type, payload, received_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.MessageID, rec.EventType, rec.Payload, rec.ReceivedAt, string(rec.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.InboxRecord{}, fmt.Errorf("%w: %s", domain.ErrAlreadyInFlight, entry.MessageID)
		}
		return domain.InboxRecord{}, fmt.Errorf("insert inbox record: %w", err)
	}
	return rec, nil
}

func (l *InboxLedger) Complete(ctx context.Context, tx pgx.Tx, record domain.InboxRecord) error {
	tag, err := tx.Exec(ctx,
		`UPDATE inbox_messages SET status = $2, processed_at = $3 WHERE id = $1`,
		record.ID, string(domain.InboxProcessed), l.now().UTC())
	if err != nil {
		return fmt.Errorf("complete inbox record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete inbox record %s: no rows updated", record.MessageID)
	}
	return nil
}

// Fail upserts the record as Failed. The business transaction that created
// the record has been rolled back by now, so the row may not exist.
func (l *InboxLedger) Fail(ctx context.Context, tx pgx.Tx, record domain.InboxRecord) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_messages (id, message_id, event_type, payload, received_at, processed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO UPDATE
			SET status = EXCLUDED.status, processed_at = EXCLUDED.processed_at
			WHERE inbox_messages.status <> $8`,
		record.ID, record.MessageID, record.EventType, record.Payload, record.ReceivedAt,
		l.now().UTC(), string(domain.InboxFailed), string(domain.InboxProcessed))
	if err != nil {
		return fmt.Errorf("fail inbox record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, record.MessageID)
	}
	return nil
}

func scanInbox(row pgx.Row) (domain.InboxRecord, error) {
	var (
		rec    domain.InboxRecord
		status string
	)
	if err := row.Scan(&rec.ID, &rec.MessageID, &rec.EventType, &rec.Payload, &rec.ReceivedAt, &rec.ProcessedAt, &status); err != nil {
		return domain.InboxRecord{}, err
	}
	rec.Status = domain.InboxStatus(status)
	return rec, nil
}
