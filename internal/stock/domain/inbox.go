package domain

import (
	"time"

	"github.com/google/uuid"
)

type InboxStatus string

const (
	InboxProcessing InboxStatus = "Processing"
	InboxProcessed  InboxStatus = "Processed"
	InboxFailed     InboxStatus = "Failed"
)

// InboxRecord remembers a delivered message by its transport message id.
// At most one record exists per MessageID.
type InboxRecord struct {
	ID          uuid.UUID   `json:"id"`
	MessageID   uuid.UUID   `json:"messageId"`
	EventType   string      `json:"eventType"`
	Payload     []byte      `json:"payload"`
	ReceivedAt  time.Time   `json:"receivedAt"`
	ProcessedAt *time.Time  `json:"processedAt,omitempty"`
	Status      InboxStatus `json:"status"`
}

// InboxEntry is what the consumer knows about a message before it has a record.
type InboxEntry struct {
	MessageID uuid.UUID
	EventType string
	Payload   []byte
}

// NewInboxRecord builds a fresh Processing record for entry.
func NewInboxRecord(entry InboxEntry, now time.Time) InboxRecord {
	return InboxRecord{
		ID:         uuid.New(),
		MessageID:  entry.MessageID,
		EventType:  entry.EventType,
		Payload:    entry.Payload,
		ReceivedAt: now.UTC(),
		Status:     InboxProcessing,
	}
}

// Terminal reports whether the record reached Processed or Failed.
func (r InboxRecord) Terminal() bool {
	return r.Status == InboxProcessed || r.Status == InboxFailed
}
