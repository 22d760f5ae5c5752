package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"epub-reader/internal/domain"

	"github.com/supabase-community/postgrest-go"
)

const highlightsTable = "highlights"

// SupabaseHighlightRepository implements domain.HighlightRepository using
// Supabase. The table's seq column is a bigint identity assigned on insert.
type SupabaseHighlightRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSupabaseHighlightRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.HighlightRepository {
	return &SupabaseHighlightRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

type supabaseHighlightRow struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	CFIRange   string    `json:"cfi_range"`
	Text       string    `json:"text"`
	Color      string    `json:"color"`
	Note       *string   `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Seq        int64     `json:"seq,omitempty"`
}

func (r *SupabaseHighlightRepository) Put(ctx context.Context, highlight *domain.Highlight) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	row := map[string]interface{}{
		"id":          highlight.ID,
		"document_id": highlight.DocumentID,
		"cfi_range":   highlight.CFIRange,
		"text":        sanitizeText(highlight.Text),
		"color":       highlight.Color,
		"created_at":  highlight.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  highlight.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if highlight.Note != nil {
		row["note"] = sanitizeText(*highlight.Note)
	} else {
		row["note"] = nil
	}

	// Request "representation" so PostgREST returns the stored row with its seq.
	data, _, err := client.From(highlightsTable).
		Upsert(row, "id", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to put highlight: %w", err)
	}

	rows, err := decodeHighlightRows(data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("failed to put highlight: empty response")
	}
	highlight.Seq = rows[0].Seq
	return nil
}

func (r *SupabaseHighlightRepository) Get(ctx context.Context, id string) (*domain.Highlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(highlightsTable).
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get highlight: %w", err)
	}

	rows, err := decodeHighlightRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrHighlightNotFound
	}
	return rows[0], nil
}

func (r *SupabaseHighlightRepository) Delete(ctx context.Context, id string) error {
	return r.deleteWhere(ctx, "id", id)
}

func (r *SupabaseHighlightRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	return r.deleteWhere(ctx, "document_id", documentID)
}

func (r *SupabaseHighlightRepository) deleteWhere(ctx context.Context, column, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	_, _, err := client.From(highlightsTable).
		Delete("", "").
		Eq(column, value).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete highlight: %w", err)
	}
	return nil
}

func (r *SupabaseHighlightRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Highlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(highlightsTable).
		Select("*", "", false).
		Eq("document_id", documentID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}

	rows, err := decodeHighlightRows(data)
	if err != nil {
		return nil, err
	}
	SortByCreation(rows)
	return rows, nil
}

func (r *SupabaseHighlightRepository) ListAll(ctx context.Context) ([]*domain.Highlight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(highlightsTable).
		Select("*", "", false).
		Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}

	rows, err := decodeHighlightRows(data)
	if err != nil {
		return nil, err
	}
	SortByRecency(rows)
	return rows, nil
}

func decodeHighlightRows(data []byte) ([]*domain.Highlight, error) {
	var rows []supabaseHighlightRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	out := make([]*domain.Highlight, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.Highlight{
			ID:         row.ID,
			DocumentID: row.DocumentID,
			CFIRange:   row.CFIRange,
			Text:       row.Text,
			Color:      row.Color,
			Note:       row.Note,
			CreatedAt:  row.CreatedAt.UTC(),
			UpdatedAt:  row.UpdatedAt.UTC(),
			Seq:        row.Seq,
		})
	}
	return out, nil
}

// SortByCreation orders highlights by CreatedAt, then insertion sequence.
func SortByCreation(highlights []*domain.Highlight) {
	sort.SliceStable(highlights, func(i, j int) bool {
		a, b := highlights[i], highlights[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
}

// SortByRecency orders highlights by UpdatedAt descending, newest insert first on ties.
func SortByRecency(highlights []*domain.Highlight) {
	sort.SliceStable(highlights, func(i, j int) bool {
		a, b := highlights[i], highlights[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.Seq > b.Seq
	})
}
