package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is the core aggregate for this bounded context. The ID is assigned
// at creation and never reused, even after deletion.
type Item struct {
	ID          uuid.UUID
	Name        ItemName
	Description ItemDescription
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewItem constructs a valid Item with a generated ID and current timestamps.
func NewItem(name ItemName, description ItemDescription) *Item {
	now := time.Now().UTC()
	return &Item{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
