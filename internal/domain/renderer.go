package domain

// AnnotationKind names an overlay type understood by the rendering engine.
type AnnotationKind string

const AnnotationHighlight AnnotationKind = "highlight"

// Rect is a screen-space rectangle in CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a screen-space coordinate relative to the viewer.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Selection is a live text selection reported by the rendering engine.
type Selection struct {
	CFIRange string `json:"cfi_range"`
	Text     string `json:"text"`
	// Rect is the selection's bounding box, Viewer the viewer element's.
	Rect   Rect `json:"rect"`
	Viewer Rect `json:"viewer"`
}

// AnnotationClick describes an activation of an overlay. Pointer is nil when
// the activation carried no pointer coordinates (keyboard).
type AnnotationClick struct {
	Payload string `json:"payload"`
	Pointer *Point `json:"pointer,omitempty"`
	Target  Rect   `json:"target"`
	Viewer  Rect   `json:"viewer"`
}

// ClickHandler receives overlay activations.
type ClickHandler func(AnnotationClick)

// Annotations is the overlay half of the rendering engine.
type Annotations interface {
	Add(kind AnnotationKind, cfiRange, payload string, onClick ClickHandler, styleClass string, style map[string]string) error
	Remove(cfiRange string, kind AnnotationKind) error
}

// Renderer is the narrow slice of the rendering engine a reader session uses.
// Subscription methods return a function that cancels the subscription.
type Renderer interface {
	Display(cfi string) error
	Next() error
	Prev() error
	OnSelectionChanged(fn func(Selection)) (cancel func())
	OnDeselected(fn func()) (cancel func())
	// HasSelection reports whether a non-collapsed selection currently exists.
	HasSelection() bool
	// Ready is closed once the document content can be queried.
	Ready() <-chan struct{}
	Annotations() Annotations
}
