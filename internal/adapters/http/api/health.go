package api

import (
	"net/http"

	"github.com/okian/certify/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	ready *atomic.Bool
}

// NewHealthHandler creates a new health handler reporting ready.
func NewHealthHandler(ready *atomic.Bool) *HealthHandler {
	if ready == nil {
		ready = atomic.NewBool(true)
	}
	return &HealthHandler{ready: ready}
}

// HandleHealth handles GET /healthz requests with the Prometheus exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// HandleLive handles GET /livez.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// HandleReady handles GET /readyz. It reports 503 before startup
// completes and while the server drains.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}
