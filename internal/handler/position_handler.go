package handler

import (
	"net/http"

	"epub-reader/internal/domain"

	"github.com/gorilla/mux"
)

// PositionHandler handles reading position requests
type PositionHandler struct {
	positionService domain.PositionService
	logger          domain.Logger
}

func NewPositionHandler(positionService domain.PositionService, logger domain.Logger) *PositionHandler {
	return &PositionHandler{
		positionService: positionService,
		logger:          logger,
	}
}

type updatePositionRequest struct {
	CFI        string  `json:"cfi"`
	Percentage float64 `json:"percentage"`
}

// GetReadingPosition handles GET /documents/{documentId}/position
func (h *PositionHandler) GetReadingPosition(w http.ResponseWriter, r *http.Request) {
	position, err := h.positionService.GetReadingPosition(r.Context(), mux.Vars(r)["documentId"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

// UpdateReadingPosition handles PUT /documents/{documentId}/position
func (h *PositionHandler) UpdateReadingPosition(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	var req updatePositionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	position, err := h.positionService.UpdateReadingPosition(r.Context(), documentID, req.CFI, req.Percentage)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

// ListReadingPositions handles GET /positions, keyed by document id
func (h *PositionHandler) ListReadingPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positionService.ListReadingPositions(r.Context())
	if err != nil {
		h.logger.Error("Failed to list reading positions", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}
