// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"epub-reader/internal/domain"

	"github.com/gorilla/mux"
)

// DocumentHandler handles document-related HTTP requests
type DocumentHandler struct {
	documentService domain.DocumentService
	logger          domain.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService domain.DocumentService, logger domain.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

type createDocumentRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
}

// GetLibrary handles GET /documents: every document with its reading position inline
func (h *DocumentHandler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	library, err := h.documentService.GetLibrary(r.Context())
	if err != nil {
		h.logger.Error("Failed to load library", err)
		writeAppError(w, err)
		return
	}
	if library == nil {
		library = make([]domain.DocumentWithPosition, 0)
	}
	writeJSON(w, http.StatusOK, library)
}

// GetDocument handles GET /documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documentService.GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	doc, err := h.documentService.CreateDocument(r.Context(), &domain.Document{ID: req.ID, Title: req.Title})
	if err != nil {
		writeAppError(w, err)
		return
	}

	h.logger.Info("Document created", "document_id", doc.ID)
	writeJSON(w, http.StatusCreated, doc)
}

// DeleteDocument handles DELETE /documents/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]

	if err := h.documentService.DeleteDocument(r.Context(), documentID); err != nil {
		h.logger.Warn("Failed to delete document", "document_id", documentID, "error", err)
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
