package repository

import (
	"context"
	"errors"
	"fmt"

	"epub-reader/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements domain.DocumentRepository.
type GormDocumentRepository struct {
	db *gorm.DB
}

func NewGormDocumentRepository(db *gorm.DB) domain.DocumentRepository {
	return &GormDocumentRepository{db: db}
}

func (r *GormDocumentRepository) Put(ctx context.Context, document *domain.Document) error {
	row := &documentRow{
		ID:        document.ID,
		Title:     sanitizeText(document.Title),
		CreatedAt: document.CreatedAt.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

func (r *GormDocumentRepository) Get(ctx context.Context, id string) (*domain.Document, error) {
	var row documentRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &domain.Document{ID: row.ID, Title: row.Title, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (r *GormDocumentRepository) List(ctx context.Context) ([]*domain.Document, error) {
	var rows []documentRow
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	out := make([]*domain.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.Document{ID: row.ID, Title: row.Title, CreatedAt: row.CreatedAt.UTC()})
	}
	return out, nil
}

func (r *GormDocumentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&documentRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
