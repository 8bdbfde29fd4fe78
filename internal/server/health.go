// health.go - Liveness/readiness probes and a component health report.
package server

import (
	"context"
	"net/http"
	"time"
)

// ComponentStatus represents the health of an individual component.
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

// ComponentHealth is the health of a single dependency.
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// healthHandler handles GET /health: an aggregate report over the
// database and object storage. Returns 503 when any component is down.
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		components := map[string]ComponentHealth{
			"database": s.checkDatabase(ctx),
			"storage":  s.checkStorage(ctx),
		}

		code := http.StatusOK
		overall := "healthy"
		for _, c := range components {
			if c.Status == ComponentStatusDown {
				code = http.StatusServiceUnavailable
				overall = "unhealthy"
				break
			}
		}

		writeJSON(w, code, map[string]any{
			"status":     overall,
			"version":    s.cfg.Version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}

// readyHandler handles GET /ready: a cheap DB ping probe for load
// balancers.
func (s *Server) readyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var one int
		if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "not_ready",
				"message": "database unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed",
		}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (s *Server) checkStorage(ctx context.Context) ComponentHealth {
	start := time.Now()
	// A tiny read against a key that cannot exist still proves
	// connectivity and credentials.
	_, err := s.blobs.Get(ctx, "healthcheck/none")
	if err == nil {
		return ComponentHealth{Status: ComponentStatusUp, LatencyMs: time.Since(start).Milliseconds()}
	}
	// Object-not-found is the expected answer from a healthy backend.
	if isNotFoundErr(err) {
		return ComponentHealth{Status: ComponentStatusUp, LatencyMs: time.Since(start).Milliseconds()}
	}
	return ComponentHealth{
		Status:  ComponentStatusDown,
		Message: "object storage unreachable",
	}
}
