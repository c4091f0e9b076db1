package handlers

import (
	"context"
	"net/http"
	"time"

	"inmoveo/internal/httpkit"
)

// Health reports liveness. With ?deep=true it also probes the storage
// backend and every configured dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":   "ok",
		"service":  "inmoveo-api",
		"provider": h.store.Provider(),
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks
		for _, c := range checks {
			if c["status"] != "ok" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	checks := map[string]map[string]any{
		"storage": probe(ctx, h.store.EnsureLayout),
	}
	checks["storage"]["provider"] = h.store.Provider()
	for name, check := range h.checks {
		checks[name] = probe(ctx, check)
	}
	return checks
}

func probe(ctx context.Context, check func(context.Context) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := check(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
