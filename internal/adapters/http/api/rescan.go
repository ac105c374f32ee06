package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	service "github.com/okian/killfeed/internal/app"
)

// RescanHandler exposes the two-step rescan flow.
type RescanHandler struct {
	deps Dependencies
}

// NewRescanHandler creates a new rescan handler.
func NewRescanHandler(deps Dependencies) *RescanHandler {
	return &RescanHandler{deps: deps}
}

type confirmResponse struct {
	Status string `json:"status"`
	Items  int    `json:"items,omitempty"`
}

// HandlePreview handles GET /rescan.
func (h *RescanHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	p, err := h.deps.PreviewRescan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rescan_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleConfirm handles POST /rescan/confirm?token=...[&wait=true]. Without
// wait the batch summary is delivered on the feed.
func (h *RescanHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing token", ErrBadRequest))
		return
	}

	done, err := h.deps.ConfirmRescan(r.Context(), token)
	switch {
	case errors.Is(err, service.ErrUnknownToken):
		writeError(w, http.StatusNotFound, "unknown_token", err)
		return
	case errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "stopped", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "confirm_failed", err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, confirmResponse{Status: "submitted"})
		return
	}
	select {
	case sum := <-done:
		writeJSON(w, http.StatusOK, sum)
	case <-r.Context().Done():
	}
}
