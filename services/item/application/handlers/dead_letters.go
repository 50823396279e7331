package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ghuser/itemflow/pkg/httpx"
	pkgvalidator "github.com/ghuser/itemflow/pkg/validator"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
)

// ResolveDeadLetterRequest is the request body for POST /dead-letters/{id}/resolve.
type ResolveDeadLetterRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"required,max=255"`
}

// DeadLetterHandler exposes the operator surface for parked messages.
type DeadLetterHandler struct {
	svc *appsvcs.Services
}

// NewDeadLetterHandler returns a DeadLetterHandler backed by the given services.
func NewDeadLetterHandler(svc *appsvcs.Services) *DeadLetterHandler {
	return &DeadLetterHandler{svc: svc}
}

// List returns dead letters, unresolved by default. Pass resolved=true to
// list resolved ones instead.
func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	resolved := r.URL.Query().Get("resolved") == "true"
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	records, err := h.svc.DeadLetters.List(r.Context(), resolved, limit)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dead_letters": records, "count": len(records)})
}

// Get returns a single dead letter by id.
func (h *DeadLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid dead letter id")
		return
	}

	record, err := h.svc.DeadLetters.Get(r.Context(), id)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed to load dead letter")
		return
	}
	if record == nil {
		httpx.JSONError(w, http.StatusNotFound, "dead letter not found")
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

// Resolve marks a dead letter as handled by an operator. Resolving an
// already-resolved record is a no-op and reports 409.
func (h *DeadLetterHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid dead letter id")
		return
	}

	req, ok := pkgvalidator.ValidateRequest[ResolveDeadLetterRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.svc.DeadLetters.Resolve(r.Context(), id, req.ResolvedBy)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed to resolve dead letter")
		return
	}
	if !updated {
		record, err := h.svc.DeadLetters.Get(r.Context(), id)
		if err == nil && record == nil {
			httpx.JSONError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		httpx.JSONError(w, http.StatusConflict, "dead letter already resolved")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resolved": true})
}
