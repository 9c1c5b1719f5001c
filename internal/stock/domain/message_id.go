package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseMessageID validates a transport message identifier.
func ParseMessageID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: missing", ErrInvalidMessageID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidMessageID, raw)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: nil uuid", ErrInvalidMessageID)
	}
	return id, nil
}
