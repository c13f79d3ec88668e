package feed

import "errors"

// Sentinel errors for the live feed.
var (
	// ErrBadPayload indicates a telemetry message could not be decoded
	// into a valid point. The message is counted and dropped.
	ErrBadPayload = errors.New("feed: bad telemetry payload")
)
