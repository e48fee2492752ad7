package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"smishguard/internal/domain/models"
	"smishguard/internal/domain/services"
	"smishguard/internal/ocr"
	"smishguard/pkg/logger"
)

const defaultMaxUploadBytes = 10 << 20

// ScanHandler handles image and text scanning endpoints
type ScanHandler struct {
	scans          *services.ScanService
	maxUploadBytes int64
	logger         *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scans *services.ScanService, maxUploadBytes int64, log *logger.Logger) *ScanHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ScanHandler{
		scans:          scans,
		maxUploadBytes: maxUploadBytes,
		logger:         log.WithComponent("scan-handler"),
	}
}

// ScanTextRequest is the request body for text scanning
type ScanTextRequest struct {
	Text string `json:"text"`
}

// ScanImage handles POST /api/scan-image - OCR, classify and persist an uploaded screenshot
func (h *ScanHandler) ScanImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		h.logger.Debug().Err(err).Msg("missing upload")
		writeError(w, http.StatusBadRequest, "A multipart field named 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	if _, err := ocr.DetectImage(data); err != nil {
		writeError(w, http.StatusBadRequest, "Uploaded file is not a supported image")
		return
	}

	record, err := h.scans.ScanImage(r.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrUnsupportedImage):
			writeError(w, http.StatusBadRequest, "Uploaded file is not a supported image")
		case errors.Is(err, ocr.ErrNoText), errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "No text found in image")
		default:
			h.logger.Error().Err(err).Msg("failed to scan image")
			writeError(w, http.StatusInternalServerError, "Error processing image")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.ScanImageResponse{
		ScanID:     record.ID,
		Prediction: record.Prediction,
	})
}

// ScanText handles POST /api/scan-text - extracts indicators without persisting
func (h *ScanHandler) ScanText(w http.ResponseWriter, r *http.Request) {
	var req ScanTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug().Err(err).Msg("invalid request body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	meta, err := h.scans.ExtractText(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	writeJSON(w, http.StatusOK, meta)
}
