package repository

import (
	"context"
	"errors"
	"fmt"

	"epub-reader/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPositionRepository implements domain.PositionRepository.
type GormPositionRepository struct {
	db *gorm.DB
}

func NewGormPositionRepository(db *gorm.DB) domain.PositionRepository {
	return &GormPositionRepository{db: db}
}

func (r *GormPositionRepository) Get(ctx context.Context, documentID string) (*domain.ReadingPosition, error) {
	var row positionRow
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrReadingPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading position: %w", err)
	}
	return row.toDomain(), nil
}

func (r *GormPositionRepository) List(ctx context.Context) ([]*domain.ReadingPosition, error) {
	var rows []positionRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reading positions: %w", err)
	}
	out := make([]*domain.ReadingPosition, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *GormPositionRepository) Upsert(ctx context.Context, position *domain.ReadingPosition) error {
	row := &positionRow{
		DocumentID: position.DocumentID,
		CFI:        position.CFI,
		Percentage: position.Percentage,
		UpdatedAt:  position.UpdatedAt.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to update reading position: %w", err)
	}
	return nil
}

func (r *GormPositionRepository) Delete(ctx context.Context, documentID string) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&positionRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete reading position: %w", err)
	}
	return nil
}

func (r *positionRow) toDomain() *domain.ReadingPosition {
	return &domain.ReadingPosition{
		DocumentID: r.DocumentID,
		CFI:        r.CFI,
		Percentage: r.Percentage,
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}
