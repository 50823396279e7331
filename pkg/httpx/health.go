package httpx

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by any infrastructure dependency exposing a
// Ping method (Database, RedisClient and EventBus all qualify).
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecks holds the dependencies probed by the health endpoint.
// Nil fields are skipped, so the worker and api can register different sets.
type HealthChecks struct {
	Database HealthChecker
	Redis    HealthChecker
	EventBus HealthChecker
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
	EventBus string `json:"event_bus,omitempty"`
}

// HealthHandler probes all registered HealthCheckers and reports degraded
// status (503) if any of them fail.
func HealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}

		probe := func(c HealthChecker) string {
			if c == nil {
				return ""
			}
			if err := c.Ping(ctx); err != nil {
				resp.Status = "degraded"
				return "unreachable"
			}
			return "ok"
		}

		resp.Database = probe(checks.Database)
		resp.Redis = probe(checks.Redis)
		resp.EventBus = probe(checks.EventBus)

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, resp)
	}
}
