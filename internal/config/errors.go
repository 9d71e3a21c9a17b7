package config

import "errors"

// Sentinel errors for configuration handling.
var (
	// ErrInvalid wraps every structural validation failure.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrMissingVariable is returned when an ${VAR} reference cannot be resolved.
	ErrMissingVariable = errors.New("config: unresolved environment variable")

	// ErrNotFound is returned when no configuration file can be located.
	ErrNotFound = errors.New("config: no configuration file found")
)
