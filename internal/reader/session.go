package reader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"epub-reader/internal/domain"
	apperrors "epub-reader/pkg/errors"
)

// State is the lifecycle state of a reader session.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateUnloading:
		return "unloading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const DefaultSelectionDebounce = 200 * time.Millisecond

// Options configures a Session. Callbacks are optional and are never invoked
// while the session lock is held.
type Options struct {
	DocumentID  string
	Debounce    time.Duration
	MenuOffsetY float64
	// Positions persists reading progress; nil disables Relocated.
	Positions domain.PositionService

	OnMenu   func(Menu)
	OnEditor func(NoteEditor)
	OnNotice func(string)
}

// Session ties one open document to its highlights. It keeps the loaded
// highlight set, the overlays registered with the renderer and the action
// menu consistent with each other and with the store.
type Session struct {
	renderer domain.Renderer
	store    domain.HighlightService
	logger   domain.Logger
	opts     Options

	mu         sync.Mutex
	state      State
	generation uint64
	highlights []*domain.Highlight
	byID       map[string]*domain.Highlight
	reconciler *Reconciler
	selection  *SelectionCapture
	candidate  *Candidate
	menu       Menu
	editor     NoteEditor
}

func NewSession(renderer domain.Renderer, store domain.HighlightService, logger domain.Logger, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultSelectionDebounce
	}
	s := &Session{
		renderer: renderer,
		store:    store,
		logger:   logger,
		opts:     opts,
		byID:     make(map[string]*domain.Highlight),
		menu:     closedMenu(),
	}
	s.reconciler = NewReconciler(renderer.Annotations(), s.handleClick, logger)
	s.selection = NewSelectionCapture(renderer, opts.Debounce, opts.MenuOffsetY, s.handleSelect, s.handleDeselect)
	return s
}

// DocumentID returns the document this session is bound to.
func (s *Session) DocumentID() string {
	return s.opts.DocumentID
}

// Open waits for the renderer to become ready, loads the document's
// highlights and registers their overlays. A Close during loading discards
// the result.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnloaded {
		state := s.state
		s.mu.Unlock()
		return apperrors.NewConflictError("session already "+state.String(), nil)
	}
	s.state = StateLoading
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	select {
	case <-s.renderer.Ready():
	case <-ctx.Done():
		s.abortLoad(gen)
		return ctx.Err()
	}

	highlights, err := s.store.ListByDocument(ctx, s.opts.DocumentID)
	if err != nil {
		s.abortLoad(gen)
		s.logger.Error("Failed to load highlights", err, "document_id", s.opts.DocumentID)
		s.notice("Could not load highlights")
		return err
	}

	s.mu.Lock()
	if s.state != StateLoading || s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("Discarding highlights loaded for a closed session", "document_id", s.opts.DocumentID)
		return errNotReady()
	}
	s.highlights = highlights
	s.byID = make(map[string]*domain.Highlight, len(highlights))
	for _, h := range highlights {
		s.byID[h.ID] = h
	}
	s.reconciler.Sync(highlights)
	s.state = StateReady
	s.mu.Unlock()

	s.selection.Start()
	s.logger.Info("Reader session ready", "document_id", s.opts.DocumentID, "highlights", len(highlights))
	return nil
}

func (s *Session) abortLoad(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading && s.generation == gen {
		s.state = StateUnloaded
	}
}

// Close tears the session down. It is safe to call more than once and from
// any state; in-flight operations observe the new generation and discard
// their results.
func (s *Session) Close() {
	s.selection.Stop()

	s.mu.Lock()
	if s.state == StateUnloaded {
		s.generation++
		s.mu.Unlock()
		return
	}
	s.state = StateUnloading
	s.generation++
	s.reconciler.Clear()
	s.highlights = nil
	s.byID = make(map[string]*domain.Highlight)
	s.candidate = nil
	s.menu = closedMenu()
	s.editor = NoteEditor{}
	s.state = StateUnloaded
	s.mu.Unlock()

	s.logger.Info("Reader session closed", "document_id", s.opts.DocumentID)
}

// CommitColor turns the current selection into a highlight of the given
// color. Choosing a color for a range that is already highlighted recolors
// the existing highlight.
func (s *Session) CommitColor(ctx context.Context, color string) (string, error) {
	color, err := paletteColor(color)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return "", errNotReady()
	}
	if s.candidate == nil {
		s.mu.Unlock()
		return "", apperrors.NewValidationError("no active selection", domain.ErrNoSelection)
	}
	cand := *s.candidate
	gen := s.generation
	var existing *domain.Highlight
	for _, h := range s.highlights {
		if h.CFIRange == cand.CFIRange {
			existing = h
			break
		}
	}
	s.mu.Unlock()

	if existing != nil {
		if _, err := s.ChangeColor(ctx, existing.ID, color); err != nil {
			return "", err
		}
		s.closeMenuIf(gen, func(m Menu) bool { return m.Kind == MenuNewSelection })
		return existing.ID, nil
	}

	id, err := s.store.Create(ctx, &domain.Highlight{
		DocumentID: s.opts.DocumentID,
		CFIRange:   cand.CFIRange,
		Text:       cand.Text,
		Color:      color,
	})
	if err != nil {
		s.storageNotice("Could not save highlight", err)
		return "", err
	}

	created, err := s.store.Get(ctx, id)
	if err != nil {
		// The write landed; the record is picked up on the next load.
		s.logger.Warn("Created highlight could not be read back", "highlight_id", id, "error", err)
		return id, nil
	}

	s.mu.Lock()
	if s.state != StateReady || s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("Session changed during create; skipping overlay", "highlight_id", id)
		return id, nil
	}
	s.highlights = append(s.highlights, created)
	s.byID[created.ID] = created
	s.reconciler.Add(created)
	s.candidate = nil
	s.menu = closedMenu()
	menu := s.menu
	s.mu.Unlock()

	s.emitMenu(menu)
	return id, nil
}

// ChangeColor recolors a loaded highlight. The overlay is replaced so the new
// style shows immediately.
func (s *Session) ChangeColor(ctx context.Context, id, color string) (*domain.Highlight, error) {
	color, err := paletteColor(color)
	if err != nil {
		return nil, err
	}

	current, gen, err := s.loaded(id)
	if err != nil {
		return nil, err
	}
	if current.Color == color {
		return current.Clone(), nil
	}

	updated, err := s.store.Update(ctx, &domain.Highlight{ID: id, Color: color, Note: current.Note})
	if err != nil {
		s.storageNotice("Could not change highlight color", err)
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateReady && s.generation == gen {
		s.replace(updated)
		s.reconciler.Sync(s.highlights)
	}
	s.mu.Unlock()
	return updated.Clone(), nil
}

// EditNote opens the note editor for a loaded highlight.
func (s *Session) EditNote(id string) error {
	h, _, err := s.loaded(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.editor = NoteEditor{Open: true, HighlightID: id, Draft: h.NoteText()}
	s.menu = closedMenu()
	editor, menu := s.editor, s.menu
	s.mu.Unlock()

	s.emitMenu(menu)
	s.emitEditor(editor)
	return nil
}

// SaveNote stores a note on a loaded highlight. A blank note clears it.
func (s *Session) SaveNote(ctx context.Context, id, note string) (*domain.Highlight, error) {
	current, gen, err := s.loaded(id)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, &domain.Highlight{ID: id, Color: current.Color, Note: &note})
	if err != nil {
		s.storageNotice("Could not save note", err)
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateReady || s.generation != gen {
		s.mu.Unlock()
		return updated.Clone(), nil
	}
	s.replace(updated)
	closed := s.editor.HighlightID == id
	if closed {
		s.editor = NoteEditor{}
	}
	s.mu.Unlock()

	if closed {
		s.emitEditor(NoteEditor{})
	}
	return updated.Clone(), nil
}

// CancelNote closes the note editor without touching the store.
func (s *Session) CancelNote() {
	s.mu.Lock()
	s.editor = NoteEditor{}
	s.mu.Unlock()
	s.emitEditor(NoteEditor{})
}

// Remove deletes a highlight of this session's document. Removing one that
// is already gone succeeds. The overlay is dropped only after the store
// accepted the delete, and before the record leaves the loaded set.
func (s *Session) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return errNotReady()
	}
	gen := s.generation
	_, isLoaded := s.byID[id]
	s.mu.Unlock()

	if !isLoaded {
		stored, err := s.store.Get(ctx, id)
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
			return nil
		case err != nil:
			s.storageNotice("Could not remove highlight", err)
			return err
		case stored.DocumentID != s.opts.DocumentID:
			s.logger.Warn("Refusing to remove highlight of another document", "highlight_id", id, "document_id", stored.DocumentID)
			return apperrors.NewNotFoundError("highlight not found", domain.ErrHighlightNotFound)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.storageNotice("Could not remove highlight", err)
		return err
	}

	s.mu.Lock()
	if s.state != StateReady || s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	var menuChanged, editorChanged bool
	if h, ok := s.byID[id]; ok {
		s.reconciler.Remove(h.CFIRange)
		delete(s.byID, id)
		for i, cur := range s.highlights {
			if cur.ID == id {
				s.highlights = append(s.highlights[:i:i], s.highlights[i+1:]...)
				break
			}
		}
	}
	if s.menu.HighlightID == id {
		s.menu = closedMenu()
		menuChanged = true
	}
	if s.editor.HighlightID == id {
		s.editor = NoteEditor{}
		editorChanged = true
	}
	menu, editor := s.menu, s.editor
	s.mu.Unlock()

	if menuChanged {
		s.emitMenu(menu)
	}
	if editorChanged {
		s.emitEditor(editor)
	}
	return nil
}

// GoTo navigates the renderer to a loaded highlight.
func (s *Session) GoTo(id string) error {
	h, _, err := s.loaded(id)
	if err != nil {
		return err
	}
	return s.renderer.Display(h.CFIRange)
}

// Relocated records the reader's new position.
func (s *Session) Relocated(ctx context.Context, cfi string, percentage float64) error {
	if s.opts.Positions == nil {
		return nil
	}
	if s.State() != StateReady {
		return errNotReady()
	}
	if _, err := s.opts.Positions.UpdateReadingPosition(ctx, s.opts.DocumentID, cfi, percentage); err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			s.storageNotice("Could not save reading position", err)
		}
		return err
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Highlights returns a copy of the loaded set in creation order.
func (s *Session) Highlights() []*domain.Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Highlight, len(s.highlights))
	for i, h := range s.highlights {
		out[i] = h.Clone()
	}
	return out
}

// Search filters the loaded set by text or note.
func (s *Session) Search(term string) []*domain.Highlight {
	return Filter(s.Highlights(), term)
}

func (s *Session) Overlays() []Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.Overlays()
}

func (s *Session) Menu() Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menu
}

func (s *Session) Editor() NoteEditor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

func (s *Session) handleSelect(c Candidate) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.candidate = &c
	s.menu = selectionMenu(c)
	menu := s.menu
	s.mu.Unlock()
	s.emitMenu(menu)
}

func (s *Session) handleDeselect() {
	s.mu.Lock()
	if s.state != StateReady || s.menu.Kind != MenuNewSelection {
		s.mu.Unlock()
		return
	}
	s.candidate = nil
	s.menu = closedMenu()
	menu := s.menu
	s.mu.Unlock()
	s.emitMenu(menu)
}

func (s *Session) handleClick(click domain.AnnotationClick) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	if _, ok := s.byID[click.Payload]; !ok {
		s.mu.Unlock()
		s.logger.Warn("Click on unknown highlight overlay", "highlight_id", click.Payload)
		return
	}
	s.candidate = nil
	s.menu = highlightMenu(click.Payload, ClickAnchor(click, s.opts.MenuOffsetY))
	menu := s.menu
	s.mu.Unlock()
	s.emitMenu(menu)
}

// loaded returns a copy of a highlight in the loaded set.
func (s *Session) loaded(id string) (*domain.Highlight, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil, 0, errNotReady()
	}
	h, ok := s.byID[id]
	if !ok {
		return nil, 0, apperrors.NewNotFoundError("highlight not found", domain.ErrHighlightNotFound)
	}
	return h.Clone(), s.generation, nil
}

// replace swaps in an updated record. Callers hold s.mu.
func (s *Session) replace(updated *domain.Highlight) {
	if _, ok := s.byID[updated.ID]; !ok {
		return
	}
	for i, h := range s.highlights {
		if h.ID == updated.ID {
			s.highlights[i] = updated
			break
		}
	}
	s.byID[updated.ID] = updated
}

func (s *Session) closeMenuIf(gen uint64, match func(Menu) bool) {
	s.mu.Lock()
	if s.generation != gen || !match(s.menu) {
		s.mu.Unlock()
		return
	}
	s.candidate = nil
	s.menu = closedMenu()
	menu := s.menu
	s.mu.Unlock()
	s.emitMenu(menu)
}

func (s *Session) storageNotice(msg string, err error) {
	s.logger.Error(msg, err, "document_id", s.opts.DocumentID)
	s.notice(msg)
}

func (s *Session) notice(msg string) {
	if s.opts.OnNotice != nil {
		s.opts.OnNotice(msg)
	}
}

func (s *Session) emitMenu(m Menu) {
	if s.opts.OnMenu != nil {
		s.opts.OnMenu(m)
	}
}

func (s *Session) emitEditor(e NoteEditor) {
	if s.opts.OnEditor != nil {
		s.opts.OnEditor(e)
	}
}

func errNotReady() error {
	return apperrors.NewConflictError("reader session not ready", domain.ErrSessionNotReady)
}

func paletteColor(color string) (string, error) {
	color = strings.ToLower(strings.TrimSpace(color))
	if !domain.IsPaletteColor(color) {
		return "", apperrors.NewValidationError("unknown highlight color", domain.ErrUnknownColor)
	}
	return color, nil
}
