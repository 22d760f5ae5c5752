package repository

import (
	"time"

	"epub-reader/internal/domain"
)

// highlightRow is the persisted shape of a highlight. The composite index
// serves per-document scans in creation order; updated_at serves recency.
type highlightRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	DocumentID string    `gorm:"not null;size:128;index:idx_highlights_document_created,priority:1"`
	CFIRange   string    `gorm:"column:cfi_range;not null"`
	Text       string    `gorm:"not null;default:''"`
	Color      string    `gorm:"not null;size:32"`
	Note       *string
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false;index:idx_highlights_document_created,priority:2"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false;index:idx_highlights_updated"`
	Seq        int64     `gorm:"not null;default:0;index:idx_highlights_document_created,priority:3"`
}

func (highlightRow) TableName() string {
	return "highlights"
}

func toHighlightRow(h *domain.Highlight) *highlightRow {
	row := &highlightRow{
		ID:         h.ID,
		DocumentID: h.DocumentID,
		CFIRange:   h.CFIRange,
		Text:       sanitizeText(h.Text),
		Color:      h.Color,
		CreatedAt:  h.CreatedAt.UTC(),
		UpdatedAt:  h.UpdatedAt.UTC(),
		Seq:        h.Seq,
	}
	if h.Note != nil {
		note := sanitizeText(*h.Note)
		row.Note = &note
	}
	return row
}

func (r *highlightRow) toDomain() *domain.Highlight {
	return &domain.Highlight{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		CFIRange:   r.CFIRange,
		Text:       r.Text,
		Color:      r.Color,
		Note:       r.Note,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		Seq:        r.Seq,
	}
}

type documentRow struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (documentRow) TableName() string {
	return "documents"
}

type positionRow struct {
	DocumentID string    `gorm:"primaryKey;size:128"`
	CFI        string    `gorm:"column:cfi;not null"`
	Percentage float64   `gorm:"not null;default:0"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (positionRow) TableName() string {
	return "reading_positions"
}

type flagRow struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Value     bool      `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (flagRow) TableName() string {
	return "flags"
}

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{&documentRow{}, &highlightRow{}, &positionRow{}, &flagRow{}}
}
