package models

import "fmt"

// ItemDescription is a value object for the optional item description.
// The empty string means "no description".
type ItemDescription string

const maxItemDescriptionLength = 2000

// NewItemDescription constructs a valid ItemDescription or returns an error.
func NewItemDescription(s string) (ItemDescription, error) {
	if len(s) > maxItemDescriptionLength {
		return "", fmt.Errorf("item description must not exceed %d characters", maxItemDescriptionLength)
	}
	return ItemDescription(s), nil
}

// String returns the underlying string value.
func (d ItemDescription) String() string {
	return string(d)
}

// IsEmpty reports whether no description was supplied.
func (d ItemDescription) IsEmpty() bool {
	return d == ""
}
