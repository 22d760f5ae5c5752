package handler

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"epub-reader/internal/domain"
	apperrors "epub-reader/pkg/errors"
)

// Mock implementations for handler testing
type MockDocumentService struct {
	documents map[string]*domain.Document
	positions map[string]*domain.ReadingPosition
	err       error
}

func NewMockDocumentService() *MockDocumentService {
	return &MockDocumentService{
		documents: make(map[string]*domain.Document),
		positions: make(map[string]*domain.ReadingPosition),
	}
}

func (m *MockDocumentService) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	var docs []*domain.Document
	for _, doc := range m.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MockDocumentService) GetLibrary(ctx context.Context) ([]domain.DocumentWithPosition, error) {
	docs, err := m.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.DocumentWithPosition
	for _, doc := range docs {
		out = append(out, domain.DocumentWithPosition{Document: doc, ReadingPosition: m.positions[doc.ID]})
	}
	return out, nil
}

func (m *MockDocumentService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if doc, exists := m.documents[id]; exists {
		return doc, nil
	}
	return nil, apperrors.NewNotFoundError("document not found", domain.ErrDocumentNotFound)
}

func (m *MockDocumentService) CreateDocument(ctx context.Context, document *domain.Document) (*domain.Document, error) {
	doc := &domain.Document{ID: document.ID, Title: strings.TrimSpace(document.Title), CreatedAt: time.Now().UTC()}
	if doc.ID == "" {
		doc.ID = "generated-id"
	}
	if err := doc.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}
	m.documents[doc.ID] = doc
	return doc, nil
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, id string) error {
	if _, exists := m.documents[id]; !exists {
		return apperrors.NewNotFoundError("document not found", domain.ErrDocumentNotFound)
	}
	delete(m.documents, id)
	return nil
}

type MockHighlightService struct {
	mu         sync.Mutex
	highlights map[string]*domain.Highlight
	nextID     int
	err        error
}

func NewMockHighlightService() *MockHighlightService {
	return &MockHighlightService{highlights: make(map[string]*domain.Highlight)}
}

func (m *MockHighlightService) Create(ctx context.Context, h *domain.Highlight) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := h.Validate(); err != nil {
		return "", apperrors.NewValidationError(err.Error(), err)
	}
	if m.err != nil {
		return "", m.err
	}
	m.nextID++
	stored := h.Clone()
	stored.ID = "h" + strconv.Itoa(m.nextID)
	stored.Seq = int64(m.nextID)
	if stored.Color == "" {
		stored.Color = "yellow"
	}
	m.highlights[stored.ID] = stored
	return stored.ID, nil
}

func (m *MockHighlightService) Get(ctx context.Context, id string) (*domain.Highlight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.highlights[id]; ok {
		return h.Clone(), nil
	}
	return nil, apperrors.NewNotFoundError("highlight not found", domain.ErrHighlightNotFound)
}

func (m *MockHighlightService) ListByDocument(ctx context.Context, documentID string) ([]*domain.Highlight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Highlight
	for _, h := range m.highlights {
		if h.DocumentID == documentID {
			out = append(out, h.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *MockHighlightService) ListAll(ctx context.Context) ([]*domain.Highlight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Highlight
	for _, h := range m.highlights {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (m *MockHighlightService) Update(ctx context.Context, h *domain.Highlight) (*domain.Highlight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.highlights[h.ID]
	if !ok {
		return nil, apperrors.NewNotFoundError("highlight not found", domain.ErrHighlightNotFound)
	}
	if h.Color != "" {
		existing.Color = h.Color
	}
	existing.Note = h.Note
	return existing.Clone(), nil
}

func (m *MockHighlightService) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.highlights, id)
	return nil
}

func (m *MockHighlightService) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.highlights {
		if h.DocumentID == documentID {
			delete(m.highlights, id)
		}
	}
	return nil
}

type MockPositionService struct {
	positions map[string]*domain.ReadingPosition
}

func NewMockPositionService() *MockPositionService {
	return &MockPositionService{positions: make(map[string]*domain.ReadingPosition)}
}

func (m *MockPositionService) GetReadingPosition(ctx context.Context, documentID string) (*domain.ReadingPosition, error) {
	if pos, ok := m.positions[documentID]; ok {
		return pos, nil
	}
	return nil, apperrors.NewNotFoundError("reading position not found", domain.ErrReadingPositionNotFound)
}

func (m *MockPositionService) ListReadingPositions(ctx context.Context) (map[string]*domain.ReadingPosition, error) {
	return m.positions, nil
}

func (m *MockPositionService) UpdateReadingPosition(ctx context.Context, documentID, cfi string, percentage float64) (*domain.ReadingPosition, error) {
	pos := &domain.ReadingPosition{DocumentID: documentID, CFI: cfi, Percentage: percentage}
	if err := pos.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}
	m.positions[documentID] = pos
	return pos, nil
}

type testServer struct {
	documents  *MockDocumentService
	highlights *MockHighlightService
	positions  *MockPositionService
	sessions   *SessionHandler
	router     http.Handler
}

func newTestServer() *testServer {
	s := &testServer{
		documents:  NewMockDocumentService(),
		highlights: NewMockHighlightService(),
		positions:  NewMockPositionService(),
	}
	logger := NewMockHandlerLogger()
	s.sessions = NewSessionHandler(s.documents, s.highlights, s.positions, logger, SessionOptions{
		Debounce:    10 * time.Millisecond,
		MenuOffsetY: 45,
	})
	s.router = NewRouter(
		NewDocumentHandler(s.documents, logger),
		NewHighlightHandler(s.highlights, logger),
		NewPositionHandler(s.positions, logger),
		s.sessions,
		[]string{"http://localhost:5173"},
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)
	return s
}
