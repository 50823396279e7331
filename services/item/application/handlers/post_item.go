package handlers

import (
	"net/http"

	"github.com/ghuser/itemflow/pkg/errhttp"
	"github.com/ghuser/itemflow/pkg/httpx"
	pkgvalidator "github.com/ghuser/itemflow/pkg/validator"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
)

// CreateItemRequest is the request body for POST /items.
type CreateItemRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// PostItemHandler handles POST /items requests.
type PostItemHandler struct {
	svc *appsvcs.Services
}

// NewPostItemHandler returns a PostItemHandler backed by the given services.
func NewPostItemHandler(svc *appsvcs.Services) *PostItemHandler {
	return &PostItemHandler{svc: svc}
}

// Execute creates a new item and returns 201 with the stored representation.
// The id is server-assigned, so retrying a request whose response was lost
// creates a second item; callers needing at-most-once must not blind-retry.
func (h *PostItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[CreateItemRequest](w, r)
	if !ok {
		return
	}

	item, err := h.svc.Item.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}
