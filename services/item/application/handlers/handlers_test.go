package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ghuser/itemflow/pkg/config"
	"github.com/ghuser/itemflow/pkg/logger"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
	itemdomain "github.com/ghuser/itemflow/services/item/domain"
	"github.com/ghuser/itemflow/services/item/domain/models"
	"github.com/ghuser/itemflow/services/item/domain/repositories"
)

type memRepo struct {
	items map[uuid.UUID]*models.Item
}

func (r *memRepo) Put(ctx context.Context, item *models.Item) error {
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, itemdomain.ErrItemNotFound
	}
	return item, nil
}

func (r *memRepo) List(ctx context.Context, opts repositories.QueryOpts) ([]*models.Item, int, error) {
	out := make([]*models.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return itemdomain.ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

func testRouter() (*chi.Mux, *memRepo) {
	repo := &memRepo{items: map[uuid.UUID]*models.Item{}}
	log := logger.New(&config.Config{LogLevel: "error"})
	svc := &appsvcs.Services{Item: appsvcs.NewItemService(repo, nil, nil, log)}

	postItem := NewPostItemHandler(svc)
	getItem := NewGetItemHandler(svc)
	getItems := NewGetItemsHandler(svc)
	deleteItem := NewDeleteItemHandler(svc)

	r := chi.NewRouter()
	r.Route("/items", func(r chi.Router) {
		r.Get("/", getItems.Execute)
		r.Post("/", postItem.Execute)
		r.Get("/{id}", getItem.Execute)
		r.Delete("/{id}", deleteItem.Execute)
	})
	return r, repo
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestItemLifecycle(t *testing.T) {
	r, _ := testRouter()

	// Create.
	w := doJSON(t, r, http.MethodPost, "/items", `{"name":"Widget","description":"a widget"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created ItemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if created.ID == uuid.Nil || created.Name != "Widget" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	// Read it back.
	w = doJSON(t, r, http.MethodGet, "/items/"+created.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got ItemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid get response: %v", err)
	}
	if got.ID != created.ID || got.Description != "a widget" {
		t.Fatalf("get mismatch: %+v", got)
	}

	// List includes it.
	w = doJSON(t, r, http.MethodGet, "/items", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list ListItemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid list response: %v", err)
	}
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("list = %+v", list)
	}

	// Delete.
	w = doJSON(t, r, http.MethodDelete, "/items/"+created.ID.String(), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	// Gone afterwards.
	w = doJSON(t, r, http.MethodGet, "/items/"+created.ID.String(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/items/"+created.ID.String(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}
}

func TestPostItem_Validation(t *testing.T) {
	r, _ := testRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing name", `{"description":"x"}`, http.StatusUnprocessableEntity},
		{"name too long", `{"name":"` + strings.Repeat("a", 300) + `"}`, http.StatusUnprocessableEntity},
		{"leading whitespace name", `{"name":" bad"}`, http.StatusUnprocessableEntity},
		{"markup in name", `{"name":"<script>"}`, http.StatusUnprocessableEntity},
		{"malformed JSON", `{"name":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/items", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetItem_InvalidID(t *testing.T) {
	r, _ := testRouter()

	w := doJSON(t, r, http.MethodGet, "/items/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	r, _ := testRouter()

	w := doJSON(t, r, http.MethodGet, "/items/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeleteItem_InvalidID(t *testing.T) {
	r, _ := testRouter()

	w := doJSON(t, r, http.MethodDelete, "/items/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
