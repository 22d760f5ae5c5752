package reader

import (
	"sort"

	"epub-reader/internal/domain"
	apperrors "epub-reader/pkg/errors"
)

const (
	// StyleClass is the CSS class attached to every highlight overlay.
	StyleClass = "epub-highlight"

	fillOpacity = "0.3"
	blendMode   = "multiply"
)

// Overlay records an annotation currently registered with the rendering engine.
type Overlay struct {
	CFIRange    string
	HighlightID string
	Color       string
}

// Plan is the set of overlay operations that brings the engine in line with
// the desired highlights. Removals are applied before additions.
type Plan struct {
	Remove []Overlay
	Add    []*domain.Highlight
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Add) == 0
}

// Diff computes the operations needed to go from current to desired. Overlays
// are keyed by range; when two highlights share a range the first one wins.
// A registered overlay whose highlight or color changed is removed and added
// again, since the engine cannot restyle an overlay in place.
func Diff(current map[string]Overlay, desired []*domain.Highlight) Plan {
	want := make(map[string]*domain.Highlight, len(desired))
	order := make([]*domain.Highlight, 0, len(desired))
	for _, h := range desired {
		if h == nil || h.CFIRange == "" {
			continue
		}
		if _, dup := want[h.CFIRange]; dup {
			continue
		}
		want[h.CFIRange] = h
		order = append(order, h)
	}

	var plan Plan
	for cfi, ov := range current {
		h, ok := want[cfi]
		if !ok || h.ID != ov.HighlightID || h.Color != ov.Color {
			plan.Remove = append(plan.Remove, ov)
		}
	}
	// Map iteration is random; keep plans reproducible.
	sort.Slice(plan.Remove, func(i, j int) bool {
		return plan.Remove[i].CFIRange < plan.Remove[j].CFIRange
	})

	for _, h := range order {
		ov, ok := current[h.CFIRange]
		if !ok || h.ID != ov.HighlightID || h.Color != ov.Color {
			plan.Add = append(plan.Add, h)
		}
	}
	return plan
}

// StyleFor returns the fill style for a highlight color.
func StyleFor(color string) map[string]string {
	return map[string]string{
		"fill":           domain.ColorHex(color),
		"fill-opacity":   fillOpacity,
		"mix-blend-mode": blendMode,
	}
}

// Reconciler owns the overlay set registered with one renderer. It is not
// safe for concurrent use; the owning Session serializes access.
type Reconciler struct {
	annotations domain.Annotations
	onClick     domain.ClickHandler
	logger      domain.Logger
	overlays    map[string]Overlay
}

func NewReconciler(annotations domain.Annotations, onClick domain.ClickHandler, logger domain.Logger) *Reconciler {
	return &Reconciler{
		annotations: annotations,
		onClick:     onClick,
		logger:      logger,
		overlays:    make(map[string]Overlay),
	}
}

// Sync diffs the registered overlays against desired and applies the result.
func (r *Reconciler) Sync(desired []*domain.Highlight) Plan {
	plan := Diff(r.overlays, desired)
	r.Apply(plan)
	return plan
}

// Apply executes a plan. Engine failures are logged and never returned: a
// failed add leaves the overlay unregistered so the next Sync retries it, a
// failed remove still forgets the overlay.
func (r *Reconciler) Apply(plan Plan) {
	for _, ov := range plan.Remove {
		r.remove(ov.CFIRange)
	}
	for _, h := range plan.Add {
		r.add(h)
	}
}

// Add registers a single overlay for a newly created highlight.
func (r *Reconciler) Add(h *domain.Highlight) {
	if ov, ok := r.overlays[h.CFIRange]; ok {
		if ov.HighlightID == h.ID && ov.Color == h.Color {
			return
		}
		r.remove(h.CFIRange)
	}
	r.add(h)
}

// Remove unregisters the overlay for a range, if one is registered.
func (r *Reconciler) Remove(cfiRange string) {
	r.remove(cfiRange)
}

// Clear removes every registered overlay.
func (r *Reconciler) Clear() {
	for cfi := range r.overlays {
		r.remove(cfi)
	}
}

// Overlays returns a snapshot of the registered overlays ordered by range.
func (r *Reconciler) Overlays() []Overlay {
	out := make([]Overlay, 0, len(r.overlays))
	for _, ov := range r.overlays {
		out = append(out, ov)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CFIRange < out[j].CFIRange })
	return out
}

func (r *Reconciler) add(h *domain.Highlight) {
	err := r.annotations.Add(domain.AnnotationHighlight, h.CFIRange, h.ID, r.onClick, StyleClass, StyleFor(h.Color))
	if err != nil {
		r.logger.Error("Failed to add highlight overlay",
			apperrors.NewOverlayError("annotation add failed", err),
			"highlight_id", h.ID, "cfi_range", h.CFIRange)
		return
	}
	r.overlays[h.CFIRange] = Overlay{CFIRange: h.CFIRange, HighlightID: h.ID, Color: h.Color}
}

func (r *Reconciler) remove(cfiRange string) {
	if _, ok := r.overlays[cfiRange]; !ok {
		return
	}
	delete(r.overlays, cfiRange)
	if err := r.annotations.Remove(cfiRange, domain.AnnotationHighlight); err != nil {
		r.logger.Warn("Failed to remove highlight overlay",
			"error", apperrors.NewOverlayError("annotation remove failed", err),
			"cfi_range", cfiRange)
	}
}
