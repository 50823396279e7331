package handlers

import (
	"net/http"
	"strconv"

	"github.com/ghuser/itemflow/pkg/errhttp"
	"github.com/ghuser/itemflow/pkg/httpx"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
	"github.com/ghuser/itemflow/services/item/domain/repositories"
)

// ListItemsResponse is the response body for GET /items.
type ListItemsResponse struct {
	Items []ItemResponse `json:"items"`
	Total int            `json:"total"`
}

// GetItemsHandler handles GET /items requests.
type GetItemsHandler struct {
	svc *appsvcs.Services
}

// NewGetItemsHandler returns a GetItemsHandler backed by the given services.
func NewGetItemsHandler(svc *appsvcs.Services) *GetItemsHandler {
	return &GetItemsHandler{svc: svc}
}

// Execute lists items, paginated via limit/offset query parameters.
func (h *GetItemsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	opts := repositories.QueryOpts{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	items, total, err := h.svc.Item.List(r.Context(), opts)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	resp := ListItemsResponse{Items: make([]ItemResponse, len(items)), Total: total}
	for i, item := range items {
		resp.Items[i] = toItemResponse(item)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
