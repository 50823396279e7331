package errhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	itemdomain "github.com/ghuser/itemflow/services/item/domain"
)

func TestWriteError_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ErrItemNotFound", itemdomain.ErrItemNotFound, http.StatusNotFound},
		{"ErrItemConflict", itemdomain.ErrItemConflict, http.StatusConflict},
		{"ErrInvalidItemName", itemdomain.ErrInvalidItemName, http.StatusUnprocessableEntity},
		{"ErrInvalidItemDescription", itemdomain.ErrInvalidItemDescription, http.StatusUnprocessableEntity},
		{"ErrStoreUnavailable", itemdomain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"wrapped ErrItemNotFound", fmt.Errorf("get item: %w", itemdomain.ErrItemNotFound), http.StatusNotFound},
		{"wrapped ErrInvalidItemName", fmt.Errorf("%w: too long", itemdomain.ErrInvalidItemName), http.StatusUnprocessableEntity},
		{"wrapped ErrStoreUnavailable", fmt.Errorf("put item: %w: timeout", itemdomain.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unknown error", errors.New("something unexpected"), http.StatusInternalServerError},
		{"generic wrapped error", fmt.Errorf("context: %w", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestWriteError_JSONBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, itemdomain.ErrItemNotFound)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if _, ok := body["error"]; !ok {
		t.Fatal("response body missing 'error' key")
	}
}

func TestWriteError_ProductionSanitizes5xx(t *testing.T) {
	SetProduction(true)
	defer SetProduction(false)

	w := httptest.NewRecorder()
	WriteError(w, errors.New("pgx: connection refused at 10.0.0.5"))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body["error"] != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("5xx body must be generic in production, got %q", body["error"])
	}
}

func TestWriteError_Production4xxKeepsMessage(t *testing.T) {
	SetProduction(true)
	defer SetProduction(false)

	w := httptest.NewRecorder()
	WriteError(w, itemdomain.ErrItemNotFound)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body["error"] != itemdomain.ErrItemNotFound.Error() {
		t.Fatalf("4xx body must keep the domain message, got %q", body["error"])
	}
}
