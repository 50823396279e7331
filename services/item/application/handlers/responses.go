package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/itemflow/services/item/domain/models"
)

// ItemResponse is the wire representation of an Item.
type ItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toItemResponse(item *models.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name.String(),
		Description: item.Description.String(),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}
