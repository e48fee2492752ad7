package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smishguard/internal/domain/services"
	"smishguard/internal/infrastructure/storage"
	"smishguard/pkg/logger"
)

// ExplainHandler handles explanation endpoints
type ExplainHandler struct {
	scans  *services.ScanService
	logger *logger.Logger
}

// NewExplainHandler creates a new explain handler
func NewExplainHandler(scans *services.ScanService, log *logger.Logger) *ExplainHandler {
	return &ExplainHandler{
		scans:  scans,
		logger: log.WithComponent("explain-handler"),
	}
}

// Explain handles POST /api/rag/explain/{scan_id}
func (h *ExplainHandler) Explain(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scan_id")

	resp, err := h.scans.Explain(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan results for "+scanID+" not found")
			return
		}
		h.logger.Error().Err(err).Str("scan_id", scanID).Msg("failed to explain scan")
		writeError(w, http.StatusInternalServerError, "An error occurred while generating reasoning")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
