package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"epub-reader/internal/domain"
)

const positionsTable = "reading_positions"

// SupabasePositionRepository implements domain.PositionRepository using Supabase.
type SupabasePositionRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSupabasePositionRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.PositionRepository {
	return &SupabasePositionRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *SupabasePositionRepository) Get(ctx context.Context, documentID string) (*domain.ReadingPosition, error) {
	positions, err := r.selectPositions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, domain.ErrReadingPositionNotFound
	}
	return positions[0], nil
}

func (r *SupabasePositionRepository) List(ctx context.Context) ([]*domain.ReadingPosition, error) {
	return r.selectPositions(ctx, "")
}

func (r *SupabasePositionRepository) selectPositions(ctx context.Context, documentID string) ([]*domain.ReadingPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	q := client.From(positionsTable).Select("*", "", false)
	if documentID != "" {
		q = q.Eq("document_id", documentID)
	}
	data, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get reading position: %w", err)
	}

	var positions []*domain.ReadingPosition
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return positions, nil
}

func (r *SupabasePositionRepository) Upsert(ctx context.Context, position *domain.ReadingPosition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	row := map[string]interface{}{
		"document_id": position.DocumentID,
		"cfi":         position.CFI,
		"percentage":  position.Percentage,
		"updated_at":  position.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, _, err := client.From(positionsTable).
		Upsert(row, "document_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update reading position: %w", err)
	}
	return nil
}

func (r *SupabasePositionRepository) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	_, _, err := client.From(positionsTable).
		Delete("", "").
		Eq("document_id", documentID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete reading position: %w", err)
	}
	return nil
}
