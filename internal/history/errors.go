package history

import "errors"

// Sentinel errors for history operations.
var (
	// ErrUnknownMode is returned for an unrecognized key mode.
	ErrUnknownMode = errors.New("history: unknown key mode")

	// ErrNegativeMax is returned when the context bound is negative.
	ErrNegativeMax = errors.New("history: max turns must be non-negative")
)
