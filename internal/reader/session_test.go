package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"epub-reader/internal/domain"
	apperrors "epub-reader/pkg/errors"
	"epub-reader/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = "moby-dick"

type sessionEvents struct {
	mu      sync.Mutex
	menus   []Menu
	editors []NoteEditor
	notices []string
}

func (e *sessionEvents) lastMenu() Menu {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.menus) == 0 {
		return Menu{}
	}
	return e.menus[len(e.menus)-1]
}

func (e *sessionEvents) noticeList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.notices...)
}

type sessionFixture struct {
	renderer *fakeRenderer
	store    *flakyStore
	events   *sessionEvents
	session  *Session
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		renderer: newFakeRenderer(),
		store:    newTestStore(t),
		events:   &sessionEvents{},
	}
	f.session = NewSession(f.renderer, f.store, logger.NewNop(), Options{
		DocumentID:  testDoc,
		Debounce:    10 * time.Millisecond,
		MenuOffsetY: 45,
		OnMenu: func(m Menu) {
			f.events.mu.Lock()
			f.events.menus = append(f.events.menus, m)
			f.events.mu.Unlock()
		},
		OnEditor: func(e NoteEditor) {
			f.events.mu.Lock()
			f.events.editors = append(f.events.editors, e)
			f.events.mu.Unlock()
		},
		OnNotice: func(msg string) {
			f.events.mu.Lock()
			f.events.notices = append(f.events.notices, msg)
			f.events.mu.Unlock()
		},
	})
	t.Cleanup(f.session.Close)
	return f
}

func (f *sessionFixture) open(t *testing.T) {
	t.Helper()
	f.renderer.markReady()
	require.NoError(t, f.session.Open(context.Background()))
	require.Equal(t, StateReady, f.session.State())
}

func (f *sessionFixture) selectRange(cfi, text string) {
	f.renderer.selectText(domain.Selection{
		CFIRange: cfi,
		Text:     text,
		Rect:     domain.Rect{Left: 100, Top: 200, Width: 50},
	})
}

func TestSession_OpenLoadsOverlays(t *testing.T) {
	f := newSessionFixture(t)
	a := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	b := seed(t, f.store, testDoc, "cfi-b", "second", "blue")
	seed(t, f.store, "other-doc", "cfi-c", "elsewhere", "green")

	f.open(t)

	hs := f.session.Highlights()
	require.Len(t, hs, 2)
	assert.Equal(t, a, hs[0].ID)
	assert.Equal(t, b, hs[1].ID)
	assert.Equal(t, []Overlay{
		{CFIRange: "cfi-a", HighlightID: a, Color: "yellow"},
		{CFIRange: "cfi-b", HighlightID: b, Color: "blue"},
	}, f.session.Overlays())
	assert.Equal(t, 2, f.renderer.annotations.count())
}

func TestSession_OpenWaitsForRenderer(t *testing.T) {
	f := newSessionFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.session.Open(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateUnloaded, f.session.State())
}

func TestSession_OpenTwiceConflicts(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)

	err := f.session.Open(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestSession_OpenStorageFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.store.listErr = apperrors.NewStorageError("failed to list highlights", errors.New("locked"))
	f.renderer.markReady()

	err := f.session.Open(context.Background())

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
	assert.Equal(t, StateUnloaded, f.session.State())
	assert.NotEmpty(t, f.events.noticeList())
}

func TestSession_CloseDuringLoadDiscardsResult(t *testing.T) {
	f := newSessionFixture(t)
	seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	gate := make(chan struct{})
	f.store.listGate = gate
	f.renderer.markReady()

	done := make(chan error, 1)
	go func() { done <- f.session.Open(context.Background()) }()

	require.Eventually(t, func() bool { return f.session.State() == StateLoading }, time.Second, time.Millisecond)
	f.session.Close()
	close(gate)

	assert.ErrorIs(t, <-done, domain.ErrSessionNotReady)
	assert.Equal(t, StateUnloaded, f.session.State())
	assert.Zero(t, f.renderer.annotations.count())
	assert.Empty(t, f.session.Highlights())
}

func TestSession_MutationsRequireReady(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.session.CommitColor(ctx, "yellow")
	assert.ErrorIs(t, err, domain.ErrSessionNotReady)
	assert.ErrorIs(t, f.session.Remove(ctx, "x"), domain.ErrSessionNotReady)
	_, err = f.session.SaveNote(ctx, "x", "note")
	assert.ErrorIs(t, err, domain.ErrSessionNotReady)
	_, err = f.session.ChangeColor(ctx, "x", "blue")
	assert.ErrorIs(t, err, domain.ErrSessionNotReady)
	assert.ErrorIs(t, f.session.GoTo("x"), domain.ErrSessionNotReady)
}

func TestSession_SelectionOpensPalette(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)

	f.selectRange("cfi-new", "whale")

	menu := f.session.Menu()
	assert.Equal(t, MenuNewSelection, menu.Kind)
	require.NotNil(t, menu.Candidate)
	assert.Equal(t, "cfi-new", menu.Candidate.CFIRange)
	assert.Equal(t, domain.Point{X: 125, Y: 155}, menu.Anchor)
	assert.Len(t, menu.Palette, len(domain.Palette))
	assert.Equal(t, menu, f.events.lastMenu())
}

func TestSession_CommitColorCreatesOneOverlay(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)
	f.selectRange("cfi-new", "  whale  ")

	id, err := f.session.CommitColor(context.Background(), "Green")
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "whale", stored.Text)
	assert.Equal(t, "green", stored.Color)
	assert.Equal(t, testDoc, stored.DocumentID)

	assert.Equal(t, []string{"add:cfi-new"}, f.renderer.annotations.history())
	ov, _ := f.renderer.annotations.get("cfi-new")
	assert.Equal(t, id, ov.payload)
	assert.Equal(t, "#a5d6a7", ov.style["fill"])
	assert.False(t, f.session.Menu().Open())

	_, err = f.session.CommitColor(context.Background(), "yellow")
	assert.ErrorIs(t, err, domain.ErrNoSelection)
}

func TestSession_CommitColorRejectsUnknownColor(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)
	f.selectRange("cfi-new", "whale")

	_, err := f.session.CommitColor(context.Background(), "orange")

	assert.ErrorIs(t, err, domain.ErrUnknownColor)
	assert.True(t, f.session.Menu().Open())
}

func TestSession_CommitColorStorageFailureLeavesNoOverlay(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)
	f.selectRange("cfi-new", "whale")
	f.store.createErr = apperrors.NewStorageError("failed to save highlight", errors.New("quota"))

	_, err := f.session.CommitColor(context.Background(), "yellow")

	require.Error(t, err)
	assert.Zero(t, f.renderer.annotations.count())
	assert.Empty(t, f.session.Highlights())
	assert.Equal(t, []string{"Could not save highlight"}, f.events.noticeList())
	assert.Equal(t, MenuNewSelection, f.session.Menu().Kind, "candidate survives for a retry")
}

func TestSession_CommitColorOnHighlightedRangeRecolors(t *testing.T) {
	f := newSessionFixture(t)
	id := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)
	f.selectRange("cfi-a", "first")

	got, err := f.session.CommitColor(context.Background(), "purple")

	require.NoError(t, err)
	assert.Equal(t, id, got)
	all, err := f.store.ListByDocument(context.Background(), testDoc)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "purple", all[0].Color)
	assert.False(t, f.session.Menu().Open())
}

func TestSession_CloseDuringCreateDropsOverlay(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)
	f.selectRange("cfi-new", "whale")
	f.store.beforeCreate = f.session.Close

	id, err := f.session.CommitColor(context.Background(), "yellow")

	require.NoError(t, err)
	assert.Zero(t, f.renderer.annotations.count())
	_, err = f.store.Get(context.Background(), id)
	assert.NoError(t, err, "the write itself is kept")
}

func TestSession_ClickOpensHighlightMenu(t *testing.T) {
	f := newSessionFixture(t)
	id := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)
	f.selectRange("cfi-other", "pending")

	f.renderer.annotations.click("cfi-a", domain.AnnotationClick{
		Target: domain.Rect{Left: 60, Top: 300, Width: 40},
	})

	menu := f.session.Menu()
	assert.Equal(t, MenuExistingHighlight, menu.Kind)
	assert.Equal(t, id, menu.HighlightID)
	assert.Nil(t, menu.Candidate)
	assert.Equal(t, []string{ActionEditNote, ActionRemove}, menu.Actions)
	assert.Equal(t, domain.Point{X: 80, Y: 255}, menu.Anchor)

	_, err := f.session.CommitColor(context.Background(), "yellow")
	assert.ErrorIs(t, err, domain.ErrNoSelection, "clicking an overlay clears the pending selection")
}

func TestSession_DeselectClosesPaletteOnly(t *testing.T) {
	f := newSessionFixture(t)
	seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)

	f.selectRange("cfi-new", "whale")
	f.renderer.clearSelection(false)
	require.Eventually(t, func() bool { return !f.session.Menu().Open() }, time.Second, 2*time.Millisecond)

	f.renderer.annotations.click("cfi-a", domain.AnnotationClick{})
	f.renderer.clearSelection(false)
	assert.Never(t, func() bool { return !f.session.Menu().Open() }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSession_NoteLifecycle(t *testing.T) {
	f := newSessionFixture(t)
	id := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)
	ctx := context.Background()

	require.NoError(t, f.session.EditNote(id))
	assert.Equal(t, NoteEditor{Open: true, HighlightID: id}, f.session.Editor())

	updated, err := f.session.SaveNote(ctx, id, "Opening line")
	require.NoError(t, err)
	assert.Equal(t, "Opening line", updated.NoteText())
	assert.Equal(t, "yellow", updated.Color)
	assert.False(t, f.session.Editor().Open)
	assert.Equal(t, "Opening line", f.session.Highlights()[0].NoteText())

	require.NoError(t, f.session.EditNote(id))
	assert.Equal(t, "Opening line", f.session.Editor().Draft)
	f.session.CancelNote()
	assert.False(t, f.session.Editor().Open)

	cleared, err := f.session.SaveNote(ctx, id, "   ")
	require.NoError(t, err)
	assert.False(t, cleared.HasNote())

	assert.Equal(t, []string{"add:cfi-a"}, f.renderer.annotations.history(), "notes never touch overlays")
}

func TestSession_SaveNoteFailureKeepsEditor(t *testing.T) {
	f := newSessionFixture(t)
	id := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)
	require.NoError(t, f.session.EditNote(id))
	f.store.updateErr = apperrors.NewStorageError("failed to update highlight", errors.New("io"))

	_, err := f.session.SaveNote(context.Background(), id, "draft")

	require.Error(t, err)
	assert.True(t, f.session.Editor().Open)
	assert.False(t, f.session.Highlights()[0].HasNote())
}

func TestSession_ChangeColorReplacesOverlay(t *testing.T) {
	f := newSessionFixture(t)
	id := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)
	ctx := context.Background()

	_, err := f.session.SaveNote(ctx, id, "keep me")
	require.NoError(t, err)
	updated, err := f.session.ChangeColor(ctx, id, "blue")

	require.NoError(t, err)
	assert.Equal(t, "blue", updated.Color)
	assert.Equal(t, "keep me", updated.NoteText())
	assert.Equal(t, []string{"add:cfi-a", "remove:cfi-a", "add:cfi-a"}, f.renderer.annotations.history())
	ov, _ := f.renderer.annotations.get("cfi-a")
	assert.Equal(t, "#90caf9", ov.style["fill"])

	_, err = f.session.ChangeColor(ctx, id, "blue")
	require.NoError(t, err)
	assert.Len(t, f.renderer.annotations.history(), 3, "same color is a no-op")
}

func TestSession_Remove(t *testing.T) {
	f := newSessionFixture(t)
	a := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	b := seed(t, f.store, testDoc, "cfi-b", "second", "green")
	f.open(t)
	ctx := context.Background()
	f.renderer.annotations.click("cfi-a", domain.AnnotationClick{})
	require.NoError(t, f.session.EditNote(a))

	require.NoError(t, f.session.Remove(ctx, a))

	hs := f.session.Highlights()
	require.Len(t, hs, 1)
	assert.Equal(t, b, hs[0].ID)
	_, ok := f.renderer.annotations.get("cfi-a")
	assert.False(t, ok)
	assert.False(t, f.session.Editor().Open)
	assert.False(t, f.session.Menu().Open())

	require.NoError(t, f.session.Remove(ctx, a), "removing twice succeeds")
}

func TestSession_RemoveIgnoresOtherDocuments(t *testing.T) {
	f := newSessionFixture(t)
	seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	foreign := seed(t, f.store, "other-doc", "cfi-z", "elsewhere", "green")
	f.open(t)
	ctx := context.Background()

	err := f.session.Remove(ctx, foreign)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "got %v", err)
	stored, err := f.store.Get(ctx, foreign)
	require.NoError(t, err)
	assert.Equal(t, "other-doc", stored.DocumentID)
	assert.Len(t, f.session.Highlights(), 1)
	assert.NoError(t, f.session.Remove(ctx, "never-existed"))
}

func TestSession_RemoveFailureKeepsOverlay(t *testing.T) {
	f := newSessionFixture(t)
	a := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)
	f.store.deleteErr = apperrors.NewStorageError("failed to delete highlight", errors.New("io"))

	err := f.session.Remove(context.Background(), a)

	require.Error(t, err)
	assert.Len(t, f.session.Highlights(), 1)
	_, ok := f.renderer.annotations.get("cfi-a")
	assert.True(t, ok)
}

func TestSession_GoTo(t *testing.T) {
	f := newSessionFixture(t)
	a := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	f.open(t)

	require.NoError(t, f.session.GoTo(a))
	assert.Equal(t, []string{"cfi-a"}, f.renderer.displayedCFIs())

	err := f.session.GoTo("missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestSession_ReloadMatchesStore(t *testing.T) {
	f := newSessionFixture(t)
	a := seed(t, f.store, testDoc, "cfi-a", "first", "yellow")
	b := seed(t, f.store, testDoc, "cfi-b", "second", "blue")
	f.open(t)
	require.Len(t, f.session.Overlays(), 2)

	f.session.Close()
	require.Zero(t, f.renderer.annotations.count())

	ctx := context.Background()
	require.NoError(t, f.store.Delete(ctx, a))
	c := seed(t, f.store, testDoc, "cfi-c", "third", "green")
	_, err := f.store.Update(ctx, &domain.Highlight{ID: b, Color: "pink"})
	require.NoError(t, err)

	require.NoError(t, f.session.Open(ctx))

	want, err := f.store.ListByDocument(ctx, testDoc)
	require.NoError(t, err)
	wantOverlays := make([]Overlay, 0, len(want))
	for _, h := range want {
		wantOverlays = append(wantOverlays, Overlay{CFIRange: h.CFIRange, HighlightID: h.ID, Color: h.Color})
	}
	assert.Equal(t, wantOverlays, f.session.Overlays())
	assert.Equal(t, []Overlay{
		{CFIRange: "cfi-b", HighlightID: b, Color: "pink"},
		{CFIRange: "cfi-c", HighlightID: c, Color: "green"},
	}, f.session.Overlays())
	assert.Equal(t, 2, f.renderer.annotations.count())
	_, ok := f.renderer.annotations.get("cfi-a")
	assert.False(t, ok, "out-of-band delete leaves no overlay")
}

func TestSession_SearchAndClose(t *testing.T) {
	f := newSessionFixture(t)
	seed(t, f.store, testDoc, "cfi-a", "Call me Ishmael", "yellow")
	seed(t, f.store, testDoc, "cfi-b", "the white whale", "green")
	f.open(t)

	found := f.session.Search("WHALE")
	require.Len(t, found, 1)
	assert.Equal(t, "cfi-b", found[0].CFIRange)

	f.session.Close()
	f.session.Close()

	assert.Equal(t, StateUnloaded, f.session.State())
	assert.Zero(t, f.renderer.annotations.count())
	assert.Zero(t, f.renderer.subscribers())
	assert.Empty(t, f.session.Search(""))
}

type recordingPositions struct {
	domain.PositionService
	calls []float64
}

func (r *recordingPositions) UpdateReadingPosition(ctx context.Context, documentID, cfi string, percentage float64) (*domain.ReadingPosition, error) {
	if cfi == "" {
		return nil, apperrors.NewValidationError("cfi: position is required", nil)
	}
	r.calls = append(r.calls, percentage)
	return &domain.ReadingPosition{DocumentID: documentID, CFI: cfi, Percentage: percentage}, nil
}

func TestSession_Relocated(t *testing.T) {
	positions := &recordingPositions{}
	r := newFakeRenderer()
	s := NewSession(r, newTestStore(t), logger.NewNop(), Options{DocumentID: testDoc, Positions: positions})
	defer s.Close()
	ctx := context.Background()

	assert.ErrorIs(t, s.Relocated(ctx, "epubcfi(/6/8)", 0.4), domain.ErrSessionNotReady)

	r.markReady()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Relocated(ctx, "epubcfi(/6/8)", 0.4))
	assert.Error(t, s.Relocated(ctx, "", 0.5))
	assert.Equal(t, []float64{0.4}, positions.calls)
}
