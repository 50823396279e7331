package domain

import "errors"

// Sentinel errors for the item domain. Use errors.Is() to check these.
var (
	// ErrItemNotFound indicates the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrItemConflict indicates the store rejected a write because of
	// conflicting state (unique constraint violation).
	ErrItemConflict = errors.New("item conflicts with existing state")

	// ErrInvalidItemName indicates the item name violates domain constraints.
	ErrInvalidItemName = errors.New("invalid item name")

	// ErrInvalidItemDescription indicates the description violates domain constraints.
	ErrInvalidItemDescription = errors.New("invalid item description")

	// ErrStoreUnavailable indicates a transient store failure; the caller
	// may retry the whole request with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)
