package domain

import "errors"

var (
	ErrInvalidMessageID = errors.New("invalid message id")

	// Dedup outcomes reported by InboxLedger.Begin.
	ErrAlreadyProcessed = errors.New("message already processed")
	ErrAlreadyInFlight  = errors.New("message already in flight")
	ErrAlreadyRejected  = errors.New("message already rejected")

	// Business rejections. They are recorded as Failed and never retried.
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

// IsRejection reports whether err is a permanent business rejection.
func IsRejection(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidQuantity)
}

// IsDedup reports whether err is one of the inbox dedup outcomes.
func IsDedup(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrAlreadyInFlight) ||
		errors.Is(err, ErrAlreadyRejected)
}

// ErrInboxRecordNotFound is returned by read paths, never by the consumer.
var ErrInboxRecordNotFound = errors.New("inbox record not found")
