package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors_WrappedIdentity(t *testing.T) {
	sentinels := []error{
		ErrItemNotFound,
		ErrItemConflict,
		ErrInvalidItemName,
		ErrInvalidItemDescription,
		ErrStoreUnavailable,
	}

	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("context: %w", sentinel)
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("errors.Is must match wrapped %v", sentinel)
		}
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	if errors.Is(ErrItemNotFound, ErrItemConflict) {
		t.Fatal("sentinels must not match each other")
	}
	if errors.Is(ErrInvalidItemName, ErrInvalidItemDescription) {
		t.Fatal("sentinels must not match each other")
	}
}

func TestSentinelErrors_DoubleWrap(t *testing.T) {
	// The service layer wraps a domain sentinel around a cause.
	wrapped := fmt.Errorf("%w: %w", ErrInvalidItemName, errors.New("too long"))
	if !errors.Is(wrapped, ErrInvalidItemName) {
		t.Fatal("errors.Is must match the sentinel in a double wrap")
	}
}
