package handler

import (
	"net/http"

	"epub-reader/internal/domain"
	"epub-reader/internal/reader"
	apperrors "epub-reader/pkg/errors"

	"github.com/gorilla/mux"
)

// HighlightHandler handles highlight-related HTTP requests.
type HighlightHandler struct {
	highlightService domain.HighlightService
	logger           domain.Logger
}

func NewHighlightHandler(highlightService domain.HighlightService, logger domain.Logger) *HighlightHandler {
	return &HighlightHandler{
		highlightService: highlightService,
		logger:           logger,
	}
}

type createHighlightRequest struct {
	CFIRange string  `json:"cfi_range"`
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	Note     *string `json:"note,omitempty"`
}

type updateHighlightRequest struct {
	Color string  `json:"color"`
	Note  *string `json:"note"`
}

// ListDocumentHighlights handles GET /documents/{documentId}/highlights?q=...
func (h *HighlightHandler) ListDocumentHighlights(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	highlights, err := h.highlightService.ListByDocument(r.Context(), documentID)
	if err != nil {
		h.logger.Error("Failed to list highlights", err, "document_id", documentID)
		writeAppError(w, err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		highlights = reader.Filter(highlights, q)
	}
	if highlights == nil {
		highlights = make([]*domain.Highlight, 0)
	}
	writeJSON(w, http.StatusOK, highlights)
}

// CreateHighlight handles POST /documents/{documentId}/highlights
func (h *HighlightHandler) CreateHighlight(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	var req createHighlightRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Color != "" && !domain.IsPaletteColor(req.Color) {
		writeError(w, http.StatusBadRequest, "unknown highlight color")
		return
	}

	id, err := h.highlightService.Create(r.Context(), &domain.Highlight{
		DocumentID: documentID,
		CFIRange:   req.CFIRange,
		Text:       req.Text,
		Color:      req.Color,
		Note:       req.Note,
	})
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			h.logger.Error("Failed to create highlight", err, "document_id", documentID)
		}
		writeAppError(w, err)
		return
	}

	created, err := h.highlightService.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to read back highlight", err, "highlight_id", id)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListHighlights handles GET /highlights, most recently updated first
func (h *HighlightHandler) ListHighlights(w http.ResponseWriter, r *http.Request) {
	highlights, err := h.highlightService.ListAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to list highlights", err)
		writeAppError(w, err)
		return
	}
	if highlights == nil {
		highlights = make([]*domain.Highlight, 0)
	}
	writeJSON(w, http.StatusOK, highlights)
}

// UpdateHighlight handles PUT /highlights/{id}
func (h *HighlightHandler) UpdateHighlight(w http.ResponseWriter, r *http.Request) {
	highlightID := mux.Vars(r)["id"]

	var req updateHighlightRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Color != "" && !domain.IsPaletteColor(req.Color) {
		writeError(w, http.StatusBadRequest, "unknown highlight color")
		return
	}

	updated, err := h.highlightService.Update(r.Context(), &domain.Highlight{
		ID:    highlightID,
		Color: req.Color,
		Note:  req.Note,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteHighlight handles DELETE /highlights/{id}
func (h *HighlightHandler) DeleteHighlight(w http.ResponseWriter, r *http.Request) {
	highlightID := mux.Vars(r)["id"]

	if err := h.highlightService.Delete(r.Context(), highlightID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
