package core

import "errors"

var (
	// ErrInvalidHandle is returned when a handle does not resolve to a live
	// job family: it was never registered, or it has been unregistered.
	// Callers should treat it as a programming error (for example racing
	// Post against Unregister), not as a transient condition.
	ErrInvalidHandle = errors.New("invalid job handle")

	// ErrCapacityExhausted is returned by Register when every slot is in use.
	ErrCapacityExhausted = errors.New("job family capacity exhausted")

	// ErrAllocationFailure is returned by Register when the family worker
	// could not be created.
	ErrAllocationFailure = errors.New("job family allocation failed")

	// ErrManagerClosed is returned by Register after Close.
	ErrManagerClosed = errors.New("thread manager is closed")
)
