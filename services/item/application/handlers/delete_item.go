package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ghuser/itemflow/pkg/errhttp"
	"github.com/ghuser/itemflow/pkg/httpx"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
)

// DeleteItemHandler handles DELETE /items/{id} requests.
type DeleteItemHandler struct {
	svc *appsvcs.Services
}

// NewDeleteItemHandler returns a DeleteItemHandler backed by the given services.
func NewDeleteItemHandler(svc *appsvcs.Services) *DeleteItemHandler {
	return &DeleteItemHandler{svc: svc}
}

// Execute deletes the item identified by the id path parameter.
func (h *DeleteItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.svc.Item.Delete(r.Context(), id); err != nil {
		errhttp.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
