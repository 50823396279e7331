package models

import "fmt"

// ItemName is a value object representing a valid item name.
// Structural rule: 1 <= len(name) <= 255 bytes. Character-level rules
// (control and markup characters) are enforced by the domain services
// package before persistence.
type ItemName string

const (
	minItemNameLength = 1
	maxItemNameLength = 255
)

// NewItemName constructs a valid ItemName or returns an error.
func NewItemName(s string) (ItemName, error) {
	if len(s) < minItemNameLength {
		return "", fmt.Errorf("item name must not be empty")
	}
	if len(s) > maxItemNameLength {
		return "", fmt.Errorf("item name must not exceed %d characters", maxItemNameLength)
	}
	return ItemName(s), nil
}

// String returns the underlying string value.
func (n ItemName) String() string {
	return string(n)
}
