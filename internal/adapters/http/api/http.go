// Package api serves the local status endpoints: metrics, health, session
// stats, the live feed and the rescan preview/confirm flow.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/killfeed/internal/app"
	"github.com/okian/killfeed/internal/domain/aggregate"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	// PreviewRescan scans the log and returns unsent events with a token.
	PreviewRescan(ctx context.Context) (service.Preview, error)
	// ConfirmRescan submits the previewed events.
	ConfirmRescan(ctx context.Context, token string) (<-chan aggregate.Summary, error)
}

// Server wires HTTP routes for the status API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	rescanHandler *RescanHandler
	feed          http.Handler
}

// NewServer creates a new API server with all handlers. feed may be nil.
func NewServer(deps Dependencies, feed http.Handler) *Server {
	return &Server{
		healthHandler: NewHealthHandler(deps),
		statsHandler:  NewStatsHandler(deps),
		rescanHandler: NewRescanHandler(deps),
		feed:          feed,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/rescan", MetricsMiddleware(s.rescanHandler.HandlePreview, "rescan"))
	mux.HandleFunc("/rescan/confirm", MetricsMiddleware(s.rescanHandler.HandleConfirm, "rescan_confirm"))
	if s.feed != nil {
		mux.Handle("/feed", s.feed)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
