package restserver

import (
	"encoding/json"
	"net/http"

	"github.com/virtualwinds/winds/internal/log"
	"github.com/virtualwinds/winds/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server.
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance.
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// GetReady is the readiness probe.
func (h *Handlers) GetReady(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetWinds serves one provider's inventory in the v2 envelope.
func (h *Handlers) GetWinds(w http.ResponseWriter, req *http.Request) {
	provider := req.URL.Query().Get("provider")
	st, ok := h.controller.Statuses[provider]
	if !ok {
		writeNotFound(w, provider)
		return
	}

	if err := h.formatter.WriteResponse(w, req, h.transformSnapshot(st.Snapshot()), nil); err != nil {
		log.Errorf("Error writing winds response: %v", err)
	}
}

// GetWindsV1 serves one provider's inventory in the legacy envelope.
func (h *Handlers) GetWindsV1(w http.ResponseWriter, req *http.Request) {
	provider := req.URL.Query().Get("provider")
	st, ok := h.controller.Statuses[provider]
	if !ok {
		writeNotFound(w, provider)
		return
	}

	if err := h.formatter.WriteResponse(w, req, h.transformSnapshotV1(st.Snapshot()), nil); err != nil {
		log.Errorf("Error writing winds response: %v", err)
	}
}

func writeNotFound(w http.ResponseWriter, provider string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "unknown provider: " + provider,
	})
}
