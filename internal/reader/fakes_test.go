package reader

import (
	"context"
	"sync"
	"testing"

	"epub-reader/internal/domain"
	"epub-reader/internal/repository"
	"epub-reader/internal/service"
	"epub-reader/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeOverlay struct {
	payload string
	class   string
	style   map[string]string
	onClick domain.ClickHandler
}

type fakeAnnotations struct {
	mu        sync.Mutex
	overlays  map[string]fakeOverlay
	ops       []string
	addErr    error
	removeErr error
}

func newFakeAnnotations() *fakeAnnotations {
	return &fakeAnnotations{overlays: make(map[string]fakeOverlay)}
}

func (a *fakeAnnotations) Add(kind domain.AnnotationKind, cfiRange, payload string, onClick domain.ClickHandler, styleClass string, style map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = append(a.ops, "add:"+cfiRange)
	if a.addErr != nil {
		return a.addErr
	}
	a.overlays[cfiRange] = fakeOverlay{payload: payload, class: styleClass, style: style, onClick: onClick}
	return nil
}

func (a *fakeAnnotations) Remove(cfiRange string, kind domain.AnnotationKind) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops = append(a.ops, "remove:"+cfiRange)
	if a.removeErr != nil {
		return a.removeErr
	}
	delete(a.overlays, cfiRange)
	return nil
}

func (a *fakeAnnotations) get(cfiRange string) (fakeOverlay, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ov, ok := a.overlays[cfiRange]
	return ov, ok
}

func (a *fakeAnnotations) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.overlays)
}

func (a *fakeAnnotations) history() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ops...)
}

// click activates the overlay registered for cfiRange.
func (a *fakeAnnotations) click(cfiRange string, click domain.AnnotationClick) {
	ov, ok := a.get(cfiRange)
	if !ok {
		return
	}
	click.Payload = ov.payload
	ov.onClick(click)
}

type fakeRenderer struct {
	mu          sync.Mutex
	ready       chan struct{}
	annotations *fakeAnnotations
	selectFns   map[int]func(domain.Selection)
	deselectFns map[int]func()
	nextID      int
	selected    bool
	displayed   []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		ready:       make(chan struct{}),
		annotations: newFakeAnnotations(),
		selectFns:   make(map[int]func(domain.Selection)),
		deselectFns: make(map[int]func()),
	}
}

func (r *fakeRenderer) Display(cfi string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayed = append(r.displayed, cfi)
	return nil
}

func (r *fakeRenderer) Next() error { return nil }
func (r *fakeRenderer) Prev() error { return nil }

func (r *fakeRenderer) OnSelectionChanged(fn func(domain.Selection)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.selectFns[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.selectFns, id)
	}
}

func (r *fakeRenderer) OnDeselected(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.deselectFns[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.deselectFns, id)
	}
}

func (r *fakeRenderer) HasSelection() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

func (r *fakeRenderer) Ready() <-chan struct{} { return r.ready }

func (r *fakeRenderer) Annotations() domain.Annotations { return r.annotations }

func (r *fakeRenderer) markReady() { close(r.ready) }

func (r *fakeRenderer) subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.selectFns) + len(r.deselectFns)
}

// selectText simulates the user selecting text.
func (r *fakeRenderer) selectText(sel domain.Selection) {
	r.mu.Lock()
	r.selected = true
	fns := make([]func(domain.Selection), 0, len(r.selectFns))
	for _, fn := range r.selectFns {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(sel)
	}
}

// clearSelection simulates the selection collapsing. keep leaves
// HasSelection true, as when a click lands inside the existing selection.
func (r *fakeRenderer) clearSelection(keep bool) {
	r.mu.Lock()
	r.selected = keep
	fns := make([]func(), 0, len(r.deselectFns))
	for _, fn := range r.deselectFns {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (r *fakeRenderer) displayedCFIs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.displayed...)
}

// flakyStore wraps a real highlight service with failure injection.
type flakyStore struct {
	domain.HighlightService

	mu           sync.Mutex
	createErr    error
	updateErr    error
	deleteErr    error
	listErr      error
	listGate     chan struct{}
	beforeCreate func()
}

func (f *flakyStore) Create(ctx context.Context, h *domain.Highlight) (string, error) {
	f.mu.Lock()
	err, hook := f.createErr, f.beforeCreate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	return f.HighlightService.Create(ctx, h)
}

func (f *flakyStore) Update(ctx context.Context, h *domain.Highlight) (*domain.Highlight, error) {
	f.mu.Lock()
	err := f.updateErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.HighlightService.Update(ctx, h)
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.HighlightService.Delete(ctx, id)
}

func (f *flakyStore) ListByDocument(ctx context.Context, documentID string) ([]*domain.Highlight, error) {
	f.mu.Lock()
	err, gate := f.listErr, f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return f.HighlightService.ListByDocument(ctx, documentID)
}

func newTestStore(t *testing.T) *flakyStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.Migrate(db))

	log := logger.NewNop()
	return &flakyStore{
		HighlightService: service.NewHighlightService(repository.NewGormHighlightRepository(db, log), log),
	}
}

func seed(t *testing.T, store domain.HighlightService, documentID, cfi, text, color string) string {
	t.Helper()
	id, err := store.Create(context.Background(), &domain.Highlight{
		DocumentID: documentID,
		CFIRange:   cfi,
		Text:       text,
		Color:      color,
	})
	require.NoError(t, err)
	return id
}
