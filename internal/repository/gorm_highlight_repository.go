package repository

import (
	"context"
	"errors"
	"fmt"

	"epub-reader/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormHighlightRepository implements domain.HighlightRepository on a gorm database.
type GormHighlightRepository struct {
	db     *gorm.DB
	logger domain.Logger
}

func NewGormHighlightRepository(db *gorm.DB, logger domain.Logger) domain.HighlightRepository {
	return &GormHighlightRepository{
		db:     db,
		logger: logger,
	}
}

// Put inserts or replaces the row keyed by highlight.ID. New rows get the next
// insertion sequence; replaced rows keep theirs.
func (r *GormHighlightRepository) Put(ctx context.Context, highlight *domain.Highlight) error {
	row := toHighlightRow(highlight)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing highlightRow
		err := tx.Select("seq").Where("id = ?", row.ID).Take(&existing).Error
		switch {
		case err == nil:
			row.Seq = existing.Seq
		case errors.Is(err, gorm.ErrRecordNotFound):
			var maxSeq int64
			if err := tx.Model(&highlightRow{}).Select("COALESCE(MAX(seq), 0)").Row().Scan(&maxSeq); err != nil {
				return fmt.Errorf("failed to read highlight sequence: %w", err)
			}
			row.Seq = maxSeq + 1
		default:
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to put highlight: %w", err)
	}

	highlight.Seq = row.Seq
	return nil
}

func (r *GormHighlightRepository) Get(ctx context.Context, id string) (*domain.Highlight, error) {
	var row highlightRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrHighlightNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get highlight: %w", err)
	}
	return row.toDomain(), nil
}

// Delete removes the row; a missing row is not an error.
func (r *GormHighlightRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&highlightRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete highlight: %w", err)
	}
	return nil
}

func (r *GormHighlightRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	res := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&highlightRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete document highlights: %w", res.Error)
	}
	r.logger.Debug("Deleted document highlights", "document_id", documentID, "count", res.RowsAffected)
	return nil
}

func (r *GormHighlightRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Highlight, error) {
	var rows []highlightRow
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	return toHighlights(rows), nil
}

func (r *GormHighlightRepository) ListAll(ctx context.Context) ([]*domain.Highlight, error) {
	var rows []highlightRow
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("seq DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	return toHighlights(rows), nil
}

func toHighlights(rows []highlightRow) []*domain.Highlight {
	out := make([]*domain.Highlight, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}
