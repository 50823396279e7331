package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ghuser/itemflow/pkg/errhttp"
	"github.com/ghuser/itemflow/pkg/httpx"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
)

// GetItemHandler handles GET /items/{id} requests.
type GetItemHandler struct {
	svc *appsvcs.Services
}

// NewGetItemHandler returns a GetItemHandler backed by the given services.
func NewGetItemHandler(svc *appsvcs.Services) *GetItemHandler {
	return &GetItemHandler{svc: svc}
}

// Execute returns a single item by id.
func (h *GetItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.svc.Item.GetByID(r.Context(), id)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}
