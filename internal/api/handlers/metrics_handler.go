package handlers

import (
	"net/http"

	"github.com/tobiadeyemi/Resolva/internal/services"
)

// MetricsHandler is the read side of the usage ledger.
type MetricsHandler struct {
	usage *services.UsageService
}

func NewMetricsHandler(usage *services.UsageService) *MetricsHandler {
	return &MetricsHandler{usage: usage}
}

func (h *MetricsHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	totals, err := h.usage.Totals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	bySession, err := h.usage.BySession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totals":     totals,
		"by_session": bySession,
	})
}
