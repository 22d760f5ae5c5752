package reader

import "epub-reader/internal/domain"

// MenuKind identifies what the action menu is offering.
type MenuKind string

const (
	MenuClosed MenuKind = "closed"
	// MenuNewSelection offers the color palette for a fresh selection.
	MenuNewSelection MenuKind = "new_selection"
	// MenuExistingHighlight offers note editing and removal.
	MenuExistingHighlight MenuKind = "existing_highlight"
)

// Menu actions offered for an existing highlight.
const (
	ActionEditNote = "edit_note"
	ActionRemove   = "remove"
)

// Menu is the action menu state at a point in time.
type Menu struct {
	Kind        MenuKind       `json:"kind"`
	Anchor      domain.Point   `json:"anchor"`
	Candidate   *Candidate     `json:"candidate,omitempty"`
	HighlightID string         `json:"highlight_id,omitempty"`
	Palette     []domain.Color `json:"palette,omitempty"`
	Actions     []string       `json:"actions,omitempty"`
}

// Open reports whether the menu is visible.
func (m Menu) Open() bool {
	return m.Kind != MenuClosed && m.Kind != ""
}

func closedMenu() Menu {
	return Menu{Kind: MenuClosed}
}

func selectionMenu(c Candidate) Menu {
	return Menu{
		Kind:      MenuNewSelection,
		Anchor:    c.Anchor,
		Candidate: &c,
		Palette:   domain.Palette,
	}
}

func highlightMenu(id string, anchor domain.Point) Menu {
	return Menu{
		Kind:        MenuExistingHighlight,
		Anchor:      anchor,
		HighlightID: id,
		Actions:     []string{ActionEditNote, ActionRemove},
	}
}

// NoteEditor is the state of the note editing panel.
type NoteEditor struct {
	Open        bool   `json:"open"`
	HighlightID string `json:"highlight_id,omitempty"`
	Draft       string `json:"draft,omitempty"`
}
