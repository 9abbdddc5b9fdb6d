package relay

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	// ErrValidation is returned for request bodies that fail validation.
	// Nothing is published and the status snapshot is unchanged.
	ErrValidation = errors.New("relay: validation failed")

	// ErrPublishFailed wraps every publish failure: not connected, timeout,
	// broker error or an open circuit breaker. The snapshot is unchanged.
	ErrPublishFailed = errors.New("relay: publish failed")
)
