package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"epub-reader/internal/domain"
	apperrors "epub-reader/pkg/errors"

	"github.com/google/uuid"
)

type documentService struct {
	documentRepo     domain.DocumentRepository
	highlightService domain.HighlightService
	positionRepo     domain.PositionRepository
	logger           domain.Logger
}

func NewDocumentService(
	documentRepo domain.DocumentRepository,
	highlightService domain.HighlightService,
	positionRepo domain.PositionRepository,
	logger domain.Logger,
) domain.DocumentService {
	return &documentService{
		documentRepo:     documentRepo,
		highlightService: highlightService,
		positionRepo:     positionRepo,
		logger:           logger,
	}
}

func (s *documentService) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list documents", err)
	}
	return docs, nil
}

// GetLibrary returns every document with its resume position, when one exists.
func (s *documentService) GetLibrary(ctx context.Context) ([]domain.DocumentWithPosition, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.positionRepo.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list reading positions", err)
	}

	byDoc := make(map[string]*domain.ReadingPosition, len(positions))
	for _, p := range positions {
		byDoc[p.DocumentID] = p
	}

	library := make([]domain.DocumentWithPosition, 0, len(docs))
	for _, doc := range docs {
		library = append(library, domain.DocumentWithPosition{
			Document:        doc,
			ReadingPosition: byDoc[doc.ID],
		})
	}
	return library, nil
}

func (s *documentService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.documentRepo.Get(ctx, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, apperrors.NewNotFoundError("document not found", err)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load document", err)
	}
	return doc, nil
}

func (s *documentService) CreateDocument(ctx context.Context, document *domain.Document) (*domain.Document, error) {
	if document == nil {
		return nil, apperrors.NewValidationError("document is required", nil)
	}
	doc := *document
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if err := doc.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}

	if err := s.documentRepo.Put(ctx, &doc); err != nil {
		return nil, apperrors.NewStorageError("failed to store document", err)
	}
	s.logger.Info("Document stored", "document_id", doc.ID, "title", doc.Title)
	return &doc, nil
}

// DeleteDocument removes a document together with its highlights and reading
// position. The document row is removed last.
func (s *documentService) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}
	if err := s.highlightService.DeleteByDocument(ctx, id); err != nil {
		return err
	}
	if err := s.positionRepo.Delete(ctx, id); err != nil {
		return apperrors.NewStorageError("failed to delete reading position", err)
	}
	if err := s.documentRepo.Delete(ctx, id); err != nil {
		return apperrors.NewStorageError("failed to delete document", err)
	}
	s.logger.Info("Document deleted", "document_id", id)
	return nil
}
