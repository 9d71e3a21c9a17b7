package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrBackend is wrapped by every inference failure, whatever its cause.
	ErrBackend = errors.New("inference backend error")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unreachable")

	// ErrBadStatus indicates the backend answered with a non-success status.
	ErrBadStatus = errors.New("backend returned an error status")

	// ErrMalformedResponse indicates the backend payload could not be decoded.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// BackendError builds an error wrapping both ErrBackend and kind, with a
// human-readable diagnostic as its message.
func BackendError(kind error, diagnostic string) error {
	return &backendError{kind: kind, diagnostic: diagnostic}
}

type backendError struct {
	kind       error
	diagnostic string
}

func (e *backendError) Error() string {
	if e.diagnostic == "" {
		return e.kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.kind, e.diagnostic)
}

func (e *backendError) Unwrap() []error {
	return []error{ErrBackend, e.kind}
}

// IsBackendError reports whether err came from an inference backend.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrBackend)
}
