package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"epub-reader/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFlagRepository implements domain.FlagRepository.
type GormFlagRepository struct {
	db *gorm.DB
}

func NewGormFlagRepository(db *gorm.DB) domain.FlagRepository {
	return &GormFlagRepository{db: db}
}

// GetFlag returns false for flags that were never set.
func (r *GormFlagRepository) GetFlag(ctx context.Context, name string) (bool, error) {
	var row flagRow
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read flag %s: %w", name, err)
	}
	return row.Value, nil
}

func (r *GormFlagRepository) SetFlag(ctx context.Context, name string, value bool) error {
	row := &flagRow{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set flag %s: %w", name, err)
	}
	return nil
}
