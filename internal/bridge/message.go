package bridge

import (
	"encoding/json"

	"epub-reader/internal/domain"
)

// Commands sent to the browser.
const (
	CommandAnnotationAdd    = "annotation_add"
	CommandAnnotationRemove = "annotation_remove"
	CommandDisplay          = "display"
	CommandNext             = "next"
	CommandPrev             = "prev"
	CommandMenu             = "menu"
	CommandNoteEditor       = "note_editor"
	CommandNotice           = "notice"
	CommandError            = "error"
	CommandHighlights       = "highlights"
)

// Events received from the browser. The first group is consumed by the
// Renderer itself; the rest are reader actions handled by a Controller.
const (
	EventRendered          = "rendered"
	EventSelected          = "selected"
	EventDeselected        = "deselected"
	EventSelectionState    = "selection_state"
	EventAnnotationClicked = "annotation_clicked"

	EventChooseColor = "choose_color"
	EventChangeColor = "change_color"
	EventEditNote    = "edit_note"
	EventSaveNote    = "save_note"
	EventCancelNote  = "cancel_note"
	EventRemove      = "remove"
	EventGoTo        = "go_to"
	EventNext        = "next"
	EventPrev        = "prev"
	EventRelocated   = "relocated"
	EventSearch      = "search"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type annotationAddPayload struct {
	Kind       string            `json:"kind"`
	CFIRange   string            `json:"cfi_range"`
	Payload    string            `json:"payload"`
	StyleClass string            `json:"style_class"`
	Style      map[string]string `json:"style"`
}

type annotationRemovePayload struct {
	Kind     string `json:"kind"`
	CFIRange string `json:"cfi_range"`
}

type displayPayload struct {
	CFI string `json:"cfi"`
}

type selectionStatePayload struct {
	HasSelection bool `json:"has_selection"`
}

type annotationClickedPayload struct {
	CFIRange string `json:"cfi_range"`
	domain.AnnotationClick
}

type highlightRef struct {
	ID string `json:"id"`
}

type colorPayload struct {
	ID    string `json:"id,omitempty"`
	Color string `json:"color"`
}

type notePayload struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

type relocatedPayload struct {
	CFI        string  `json:"cfi"`
	Percentage float64 `json:"percentage"`
}

type searchPayload struct {
	Term string `json:"term"`
}

type textPayload struct {
	Message string `json:"message"`
}
