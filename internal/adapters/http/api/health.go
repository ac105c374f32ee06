package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/killfeed/pkg/metrics"
)

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

type healthResponse struct {
	Status string `json:"status"`
	Online bool   `json:"api_online"`
	Tailer string `json:"tailer"`
}

// HandleHealth handles GET /healthz. The process is healthy while it serves;
// API reachability is reported alongside.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	st := h.stats.Stats()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Online: st.Online, Tailer: st.TailerState})
}

// MetricsHandler serves the custom metrics registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
