// Package router turns inbound chat messages into replies: it filters and
// classifies each message, keeps the sender's conversation context up to
// date, calls the inference provider and delivers the reply in fragments.
package router

import "errors"

// Sentinel errors for router operations.
var (
	// ErrAtCapacity indicates too many messages are in flight and the
	// incoming message was dropped.
	ErrAtCapacity = errors.New("router: at capacity, message dropped")

	// ErrRouterStopped indicates the router no longer accepts messages.
	ErrRouterStopped = errors.New("router: stopped")

	// ErrNoPipeline indicates the router was created without a pipeline.
	ErrNoPipeline = errors.New("router: no pipeline configured")

	// ErrNoHistory indicates no history store has been configured.
	ErrNoHistory = errors.New("router: no history store configured")

	// ErrNoProvider indicates no inference provider has been configured.
	ErrNoProvider = errors.New("router: no inference provider configured")

	// ErrNoResponseSender indicates no response sender has been configured.
	ErrNoResponseSender = errors.New("router: no response sender configured")
)
