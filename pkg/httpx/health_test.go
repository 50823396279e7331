package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct{ err error }

func (f fakeChecker) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		h := HealthHandler(HealthChecks{
			Database: fakeChecker{},
			Redis:    fakeChecker{},
			EventBus: fakeChecker{},
		})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if body["status"] != "ok" {
			t.Fatalf("status field = %q, want ok", body["status"])
		}
	})

	t.Run("one dependency down reports degraded", func(t *testing.T) {
		h := HealthHandler(HealthChecks{
			Database: fakeChecker{},
			Redis:    fakeChecker{err: errors.New("connection refused")},
		})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if body["status"] != "degraded" {
			t.Fatalf("status field = %q, want degraded", body["status"])
		}
		if body["redis"] != "unreachable" {
			t.Fatalf("redis field = %q, want unreachable", body["redis"])
		}
	})

	t.Run("nil checkers are skipped", func(t *testing.T) {
		h := HealthHandler(HealthChecks{Database: fakeChecker{}})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if _, ok := body["redis"]; ok {
			t.Fatal("nil redis checker must be omitted from the response")
		}
	})
}
