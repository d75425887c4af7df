package handler

import (
	"net/http"
)

const apiVersion = "0.1.0"

// HealthResponse reports overall service health and each backing store's
// state
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// Health reports liveness plus the health of Postgres and Redis. A degraded
// response still describes which dependency is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := map[string]string{
		"postgres": healthOf(h.db.HealthCheck(ctx)),
		"redis":    healthOf(h.rdb.HealthCheck(ctx)),
	}

	status := "healthy"
	code := http.StatusOK
	for _, s := range services {
		if s == "unhealthy" {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, HealthResponse{
		Status:   status,
		Version:  apiVersion,
		Services: services,
	})
}

// Ready answers 200 only when every dependency is reachable
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.HealthCheck(ctx); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	if err := h.rdb.HealthCheck(ctx); err != nil {
		http.Error(w, "redis not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func healthOf(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}
