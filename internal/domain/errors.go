package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not resolve to a ledger row
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidPayload is returned when a queued message body cannot be decoded
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxAttemptsExceeded is returned when a unit has exhausted its transport retries
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

	// ErrUnknownMarketplace is returned when no catalog source is registered for a marketplace
	ErrUnknownMarketplace = errors.New("unknown marketplace")

	// ErrVideoNotFound is returned when a webhook references an unresolvable video id
	ErrVideoNotFound = errors.New("video not found")

	// ErrProductNotFound is returned when an entity id does not resolve to a product
	ErrProductNotFound = errors.New("product not found")

	// ErrAuditRecordNotFound is returned when an audit record id does not resolve
	ErrAuditRecordNotFound = errors.New("audit record not found")
)

// RetryableError wraps transient errors that should trigger a redelivery
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
