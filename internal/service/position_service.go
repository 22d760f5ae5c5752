package service

import (
	"context"
	"errors"
	"time"

	"epub-reader/internal/domain"
	apperrors "epub-reader/pkg/errors"
)

type positionService struct {
	repo   domain.PositionRepository
	logger domain.Logger
}

func NewPositionService(repo domain.PositionRepository, logger domain.Logger) domain.PositionService {
	return &positionService{
		repo:   repo,
		logger: logger,
	}
}

// GetReadingPosition retrieves the resume position for a document
func (s *positionService) GetReadingPosition(ctx context.Context, documentID string) (*domain.ReadingPosition, error) {
	position, err := s.repo.Get(ctx, documentID)
	if errors.Is(err, domain.ErrReadingPositionNotFound) {
		return nil, apperrors.NewNotFoundError("reading position not found", err)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load reading position", err)
	}
	return position, nil
}

// ListReadingPositions retrieves all reading positions keyed by document id
func (s *positionService) ListReadingPositions(ctx context.Context) (map[string]*domain.ReadingPosition, error) {
	positions, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list reading positions", err)
	}
	out := make(map[string]*domain.ReadingPosition, len(positions))
	for _, p := range positions {
		out[p.DocumentID] = p
	}
	return out, nil
}

// UpdateReadingPosition stores the latest location reported by the renderer
func (s *positionService) UpdateReadingPosition(ctx context.Context, documentID, cfi string, percentage float64) (*domain.ReadingPosition, error) {
	position := &domain.ReadingPosition{
		DocumentID: documentID,
		CFI:        cfi,
		Percentage: clampPercentage(percentage),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := position.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}
	if err := s.repo.Upsert(ctx, position); err != nil {
		s.logger.Error("Failed to update reading position", err, "document_id", documentID)
		return nil, apperrors.NewStorageError("failed to update reading position", err)
	}
	return position, nil
}

func clampPercentage(p float64) float64 {
	switch {
	case p != p, p < 0: // NaN or negative
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
