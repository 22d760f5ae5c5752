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

// Timestamps are kept at microsecond precision, the finest postgres stores.
const timestampPrecision = time.Microsecond

type HighlightService struct {
	repo   domain.HighlightRepository
	logger domain.Logger
	now    func() time.Time
}

func NewHighlightService(repo domain.HighlightRepository, logger domain.Logger) domain.HighlightService {
	return &HighlightService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Create validates and stores a new highlight, returning its id. Validation
// failures are rejected before any I/O.
func (s *HighlightService) Create(ctx context.Context, highlight *domain.Highlight) (string, error) {
	if highlight == nil {
		return "", apperrors.NewValidationError("highlight is required", nil)
	}
	if err := highlight.Validate(); err != nil {
		return "", apperrors.NewValidationError(err.Error(), err)
	}

	h := highlight.Clone()
	if h.ID == "" {
		h.ID = uuid.NewString()
	} else if err := s.ensureUnused(ctx, h.ID); err != nil {
		return "", err
	}
	if h.Color == "" {
		h.Color = domain.Palette[0].Name
	}
	h.Text = strings.TrimSpace(h.Text)
	h.Note = normalizeNote(h.Note)

	now := s.timestamp()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}

	if err := s.repo.Put(ctx, h); err != nil {
		s.logger.Error("Failed to store highlight", err, "document_id", h.DocumentID)
		return "", apperrors.NewStorageError("failed to save highlight", err)
	}

	s.logger.Info("Highlight created", "document_id", h.DocumentID, "highlight_id", h.ID)
	return h.ID, nil
}

// ensureUnused rejects a caller-supplied id that already names a record, so
// Create never rewrites an existing highlight.
func (s *HighlightService) ensureUnused(ctx context.Context, id string) error {
	_, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		return apperrors.NewConflictError("highlight already exists", domain.ErrHighlightExists)
	case errors.Is(err, domain.ErrHighlightNotFound):
		return nil
	default:
		s.logger.Error("Failed to check highlight id", err, "highlight_id", id)
		return apperrors.NewStorageError("failed to save highlight", err)
	}
}

func (s *HighlightService) Get(ctx context.Context, id string) (*domain.Highlight, error) {
	h, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrHighlightNotFound) {
		return nil, apperrors.NewNotFoundError("highlight not found", err)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load highlight", err)
	}
	return h, nil
}

func (s *HighlightService) ListByDocument(ctx context.Context, documentID string) ([]*domain.Highlight, error) {
	if documentID == "" {
		return nil, apperrors.NewValidationError("document_id is required", nil)
	}
	highlights, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list highlights", err)
	}
	return highlights, nil
}

func (s *HighlightService) ListAll(ctx context.Context) ([]*domain.Highlight, error) {
	highlights, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list highlights", err)
	}
	return highlights, nil
}

// Update replaces the mutable fields (color, note) of an existing highlight.
// Identity, position, text and creation time always come from the stored
// record. UpdatedAt moves strictly forward.
func (s *HighlightService) Update(ctx context.Context, highlight *domain.Highlight) (*domain.Highlight, error) {
	if highlight == nil || highlight.ID == "" {
		return nil, apperrors.NewValidationError("highlight id is required", nil)
	}

	existing, err := s.Get(ctx, highlight.ID)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	if highlight.Color != "" {
		updated.Color = highlight.Color
	}
	updated.Note = normalizeNote(highlight.Note)

	now := s.timestamp()
	if !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(timestampPrecision)
	}
	updated.UpdatedAt = now

	if err := s.repo.Put(ctx, updated); err != nil {
		s.logger.Error("Failed to update highlight", err, "highlight_id", updated.ID)
		return nil, apperrors.NewStorageError("failed to update highlight", err)
	}

	s.logger.Debug("Highlight updated", "highlight_id", updated.ID, "color", updated.Color)
	return updated, nil
}

// Delete removes a highlight. Deleting an unknown id succeeds.
func (s *HighlightService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewValidationError("highlight id is required", nil)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete highlight", err, "highlight_id", id)
		return apperrors.NewStorageError("failed to delete highlight", err)
	}
	s.logger.Info("Highlight deleted", "highlight_id", id)
	return nil
}

func (s *HighlightService) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := s.repo.DeleteByDocument(ctx, documentID); err != nil {
		return apperrors.NewStorageError("failed to delete document highlights", err)
	}
	return nil
}

func (s *HighlightService) timestamp() time.Time {
	return s.now().UTC().Truncate(timestampPrecision)
}

// normalizeNote maps blank notes to absent.
func normalizeNote(note *string) *string {
	if note == nil || strings.TrimSpace(*note) == "" {
		return nil
	}
	n := *note
	return &n
}
