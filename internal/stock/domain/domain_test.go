package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseMessageID(t *testing.T) {
	valid := uuid.New()
	tests := []struct {
		name    string
		raw     string
		want    uuid.UUID
		wantErr bool
	}{
		{"valid", valid.String(), valid, false},
		{"padded", "  " + valid.String() + " ", valid, false},
		{"empty", "", uuid.Nil, true},
		{"garbage", "order-42", uuid.Nil, true},
		{"nil uuid", uuid.Nil.String(), uuid.Nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessageID(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMessageID) {
					t.Fatalf("err = %v, want ErrInvalidMessageID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckDecrement(t *testing.T) {
	item := StockItem{ID: uuid.New(), Quantity: 5}

	if err := item.CheckDecrement(5); err != nil {
		t.Fatalf("taking all stock: %v", err)
	}
	if err := item.CheckDecrement(6); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	for _, q := range []int{0, -1} {
		if err := item.CheckDecrement(q); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: err = %v, want ErrInvalidQuantity", q, err)
		}
	}
	if got := item.Decremented(2).Quantity; got != 3 {
		t.Fatalf("decremented quantity = %d, want 3", got)
	}
	if item.Quantity != 5 {
		t.Fatalf("Decremented must not modify the receiver")
	}
}

func TestErrorClassification(t *testing.T) {
	for _, err := range []error{ErrProductNotFound, ErrInsufficientStock, ErrInvalidQuantity} {
		if !IsRejection(err) || IsDedup(err) {
			t.Errorf("%v should classify as rejection only", err)
		}
	}
	for _, err := range []error{ErrAlreadyProcessed, ErrAlreadyInFlight, ErrAlreadyRejected} {
		if !IsDedup(err) || IsRejection(err) {
			t.Errorf("%v should classify as dedup only", err)
		}
	}
	if IsRejection(errors.New("timeout")) {
		t.Errorf("technical errors are not rejections")
	}
}

func TestOutcomeFlags(t *testing.T) {
	tests := []struct {
		out     Outcome
		success bool
		retry   bool
	}{
		{Applied(), true, false},
		{Duplicate("already processed"), true, false},
		{Skipped("in flight"), true, false},
		{Rejected(ErrInsufficientStock), false, false},
		{Invalid(ErrInvalidMessageID), false, false},
		{TechnicalFailure(errors.New("db down")), false, true},
	}
	for _, tt := range tests {
		if tt.out.Success() != tt.success || tt.out.Retry() != tt.retry {
			t.Errorf("%s: success=%v retry=%v", tt.out, tt.out.Success(), tt.out.Retry())
		}
	}
	if got := Rejected(ErrProductNotFound).String(); got != "rejected: product not found" {
		t.Errorf("String() = %q", got)
	}
}

func TestNewInboxRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	entry := InboxEntry{MessageID: uuid.New(), EventType: EventTypeOrderCreated, Payload: []byte(`{}`)}

	rec := NewInboxRecord(entry, now)
	if rec.Status != InboxProcessing || rec.Terminal() {
		t.Fatalf("new record status = %q", rec.Status)
	}
	if rec.ID == uuid.Nil || rec.MessageID != entry.MessageID {
		t.Fatalf("record ids = %s/%s", rec.ID, rec.MessageID)
	}
	if rec.ReceivedAt.Location() != time.UTC || !rec.ReceivedAt.Equal(now) {
		t.Fatalf("received at = %v", rec.ReceivedAt)
	}
	if rec.ProcessedAt != nil {
		t.Fatalf("processed at must be unset")
	}
}
