package domain

import (
	"context"
	"time"
)

// ReadingPosition is the single resume record kept per document.
type ReadingPosition struct {
	DocumentID string  `json:"document_id"`
	CFI        string  `json:"cfi"`
	Percentage float64 `json:"percentage"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the minimal book record this service knows about. Content lives
// with the rendering engine; only the id and title are read here.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	CreatedAt time.Time `json:"created_at"`
}

// DocumentWithPosition represents a document together with its resume state.
type DocumentWithPosition struct {
	Document        *Document        `json:"document"`
	ReadingPosition *ReadingPosition `json:"reading_position,omitempty"`
}

// DocumentRepository defines persistence operations for documents.
type DocumentRepository interface {
	Put(ctx context.Context, document *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]*Document, error)
	Delete(ctx context.Context, id string) error
}

// PositionRepository defines persistence operations for reading positions.
type PositionRepository interface {
	Get(ctx context.Context, documentID string) (*ReadingPosition, error)
	List(ctx context.Context) ([]*ReadingPosition, error)
	Upsert(ctx context.Context, position *ReadingPosition) error
	Delete(ctx context.Context, documentID string) error
}

// FlagRepository stores named process-wide booleans.
type FlagRepository interface {
	GetFlag(ctx context.Context, name string) (bool, error)
	SetFlag(ctx context.Context, name string, value bool) error
}

// DocumentService defines the use-case operations for documents.
type DocumentService interface {
	ListDocuments(ctx context.Context) ([]*Document, error)
	GetLibrary(ctx context.Context) ([]DocumentWithPosition, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	CreateDocument(ctx context.Context, document *Document) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// PositionService defines the use-case operations for reading positions.
type PositionService interface {
	GetReadingPosition(ctx context.Context, documentID string) (*ReadingPosition, error)
	ListReadingPositions(ctx context.Context) (map[string]*ReadingPosition, error)
	UpdateReadingPosition(ctx context.Context, documentID, cfi string, percentage float64) (*ReadingPosition, error)
}

// Validate checks the fields required before a document may be stored.
func (d *Document) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "document ID is required"}
	}
	if d.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return nil
}

// Validate checks a reading position before it is stored.
func (p *ReadingPosition) Validate() error {
	if p.DocumentID == "" {
		return &ValidationError{Field: "document_id", Message: "document ID is required"}
	}
	if p.CFI == "" {
		return &ValidationError{Field: "cfi", Message: "position is required"}
	}
	return nil
}
