package domain

import (
	"context"
	"strings"
	"time"
)

// Highlight represents a saved text selection inside an EPUB document.
type Highlight struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`

	// CFIRange is the rendering engine's range identifier. It is stored and
	// compared as an atomic value and never parsed.
	CFIRange string  `json:"cfi_range"`
	Text     string  `json:"text"`
	Color    string  `json:"color"`
	Note     *string `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Seq is assigned by the store on insert and breaks CreatedAt ties.
	Seq int64 `json:"-"`
}

// HasNote reports whether the highlight carries a non-blank note.
func (h *Highlight) HasNote() bool {
	return h.Note != nil && strings.TrimSpace(*h.Note) != ""
}

// NoteText returns the note or an empty string when absent.
func (h *Highlight) NoteText() string {
	if h.Note == nil {
		return ""
	}
	return *h.Note
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (h *Highlight) Clone() *Highlight {
	if h == nil {
		return nil
	}
	c := *h
	if h.Note != nil {
		note := *h.Note
		c.Note = &note
	}
	return &c
}

// HighlightRepository is the key-value persistence layer for highlights.
// Put is insert-or-replace keyed by ID. Scans return rows in index order.
type HighlightRepository interface {
	Put(ctx context.Context, highlight *Highlight) error
	Get(ctx context.Context, id string) (*Highlight, error)
	Delete(ctx context.Context, id string) error
	DeleteByDocument(ctx context.Context, documentID string) error
	// ListByDocument returns rows ordered by created_at, then seq, ascending.
	ListByDocument(ctx context.Context, documentID string) ([]*Highlight, error)
	// ListAll returns rows ordered by updated_at descending.
	ListAll(ctx context.Context) ([]*Highlight, error)
}

// HighlightService defines the use-case operations for highlights.
type HighlightService interface {
	Create(ctx context.Context, highlight *Highlight) (string, error)
	Get(ctx context.Context, id string) (*Highlight, error)
	ListByDocument(ctx context.Context, documentID string) ([]*Highlight, error)
	ListAll(ctx context.Context) ([]*Highlight, error)
	Update(ctx context.Context, highlight *Highlight) (*Highlight, error)
	Delete(ctx context.Context, id string) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Palette is the fixed set of colors offered when highlighting a new selection.
var Palette = []Color{
	{Name: "yellow", Hex: "#ffeb3b"},
	{Name: "green", Hex: "#a5d6a7"},
	{Name: "blue", Hex: "#90caf9"},
	{Name: "pink", Hex: "#f48fb1"},
	{Name: "purple", Hex: "#ce93d8"},
}

// Color is a named palette entry.
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// ColorHex resolves a palette name to its hex value. Values that already look
// like hex colors, or are unknown, are returned unchanged.
func ColorHex(color string) string {
	for _, c := range Palette {
		if strings.EqualFold(c.Name, color) {
			return c.Hex
		}
	}
	return color
}

// IsPaletteColor reports whether color names a palette entry.
func IsPaletteColor(color string) bool {
	for _, c := range Palette {
		if strings.EqualFold(c.Name, color) {
			return true
		}
	}
	return false
}

// Validate checks the fields required before a highlight may be stored.
func (h *Highlight) Validate() error {
	if strings.TrimSpace(h.DocumentID) == "" {
		return &ValidationError{Field: "document_id", Message: "document ID is required"}
	}
	if strings.TrimSpace(h.CFIRange) == "" {
		return &ValidationError{Field: "cfi_range", Message: "position reference is required"}
	}
	return nil
}
