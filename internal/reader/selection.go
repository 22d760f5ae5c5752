package reader

import (
	"strings"
	"sync"
	"time"

	"epub-reader/internal/domain"
)

// Candidate is a captured selection waiting for the user to pick a color.
type Candidate struct {
	CFIRange string       `json:"cfi_range"`
	Text     string       `json:"text"`
	Anchor   domain.Point `json:"anchor"`
}

// SelectionCapture turns renderer selection events into highlight candidates.
// Deselection is debounced: it is honored only if no selection exists once
// the delay has passed, so clicks on the action menu do not close it.
type SelectionCapture struct {
	renderer domain.Renderer
	delay    time.Duration
	offsetY  float64

	onSelect   func(Candidate)
	onDeselect func()

	mu      sync.Mutex
	timer   *time.Timer
	cancels []func()
	started bool
}

func NewSelectionCapture(renderer domain.Renderer, delay time.Duration, offsetY float64, onSelect func(Candidate), onDeselect func()) *SelectionCapture {
	return &SelectionCapture{
		renderer:   renderer,
		delay:      delay,
		offsetY:    offsetY,
		onSelect:   onSelect,
		onDeselect: onDeselect,
	}
}

// Start subscribes to the renderer's selection events.
func (c *SelectionCapture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.cancels = append(c.cancels,
		c.renderer.OnSelectionChanged(c.HandleSelection),
		c.renderer.OnDeselected(c.HandleDeselected),
	)
}

// Stop unsubscribes and drops any pending deselection.
func (c *SelectionCapture) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.started = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
}

// HandleSelection processes a "selection changed" event.
func (c *SelectionCapture) HandleSelection(sel domain.Selection) {
	text := strings.TrimSpace(sel.Text)
	if text == "" {
		c.HandleDeselected()
		return
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.onSelect(Candidate{
		CFIRange: sel.CFIRange,
		Text:     text,
		Anchor:   Anchor(sel.Rect, sel.Viewer, c.offsetY),
	})
}

// HandleDeselected schedules a deselection check after the debounce delay.
func (c *SelectionCapture) HandleDeselected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		current := c.timer == t && c.started
		if current {
			c.timer = nil
		}
		c.mu.Unlock()

		if current && !c.renderer.HasSelection() {
			c.onDeselect()
		}
	})
	c.timer = t
}

// Anchor places the action menu centered above rect, in viewer coordinates.
func Anchor(rect, viewer domain.Rect, offsetY float64) domain.Point {
	return domain.Point{
		X: rect.Left - viewer.Left + rect.Width/2,
		Y: rect.Top - viewer.Top - offsetY,
	}
}

// ClickAnchor places the action menu for an overlay activation, preferring
// the pointer position and falling back to the target's bounding box.
func ClickAnchor(click domain.AnnotationClick, offsetY float64) domain.Point {
	if click.Pointer != nil {
		return domain.Point{
			X: click.Pointer.X - click.Viewer.Left,
			Y: click.Pointer.Y - click.Viewer.Top - offsetY,
		}
	}
	return Anchor(click.Target, click.Viewer, offsetY)
}
