package telemetry

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	// ErrMalformedMessage is returned for payloads that are not a JSON object
	// or carry a known key with the wrong type. Nothing is stored.
	ErrMalformedMessage = errors.New("telemetry: malformed message")

	// ErrNotFound is returned by Latest and Statistics on an empty history.
	ErrNotFound = errors.New("telemetry: no data available")

	// ErrInvalidRange is returned for missing or unparseable range bounds,
	// or when end is before start.
	ErrInvalidRange = errors.New("telemetry: invalid time range")
)
