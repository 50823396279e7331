package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghuser/itemflow/pkg/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		ServiceName:    "itemflow-test",
		ServiceVersion: "test",
		Environment:    "testing",
	}
}

func TestSetup_WithoutOTLPEndpoint(t *testing.T) {
	shutdown, handler, err := Setup(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shutdown == nil || handler == nil {
		t.Fatal("expected shutdown func and metrics handler")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_MetricsEndpoint(t *testing.T) {
	_, handler, err := Setup(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestSetupSentry_EmptyDSNIsNoop(t *testing.T) {
	if err := SetupSentry(&config.Config{}); err != nil {
		t.Fatalf("empty DSN must not error: %v", err)
	}
}
