package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"epub-reader/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// ErrClosed is returned when sending on a connection that has shut down.
var ErrClosed = errors.New("renderer connection closed")

// Renderer drives a browser-side rendering engine over a websocket. It
// implements domain.Renderer; reader actions that arrive on the same socket
// are passed to the handler given to Run.
type Renderer struct {
	conn   *websocket.Conn
	logger domain.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once

	mu          sync.Mutex
	nextID      int
	selectFns   map[int]func(domain.Selection)
	deselectFns map[int]func()
	selected    bool
	clicks      map[string]domain.ClickHandler
}

func NewRenderer(conn *websocket.Conn, logger domain.Logger) *Renderer {
	return &Renderer{
		conn:        conn,
		logger:      logger,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		ready:       make(chan struct{}),
		selectFns:   make(map[int]func(domain.Selection)),
		deselectFns: make(map[int]func()),
		clicks:      make(map[string]domain.ClickHandler),
	}
}

// Run pumps the connection until the peer disconnects or ctx is done.
// Frames that are not renderer events are passed to handle, one at a time.
func (r *Renderer) Run(ctx context.Context, handle func(context.Context, Message)) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.writePump()
	}()

	stop := context.AfterFunc(ctx, r.Close)
	defer stop()

	r.readPump(ctx, handle)
	r.Close()
	wg.Wait()
	_ = r.conn.Close()
}

// Close stops both pumps. It is safe to call more than once.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		// Unblock ReadMessage.
		_ = r.conn.SetReadDeadline(time.Now())
	})
}

// Send queues a command for the browser.
func (r *Renderer) Send(kind string, payload interface{}) error {
	msg := Message{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = raw
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.send <- frame:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

func (r *Renderer) Display(cfi string) error {
	return r.Send(CommandDisplay, displayPayload{CFI: cfi})
}

func (r *Renderer) Next() error {
	return r.Send(CommandNext, nil)
}

func (r *Renderer) Prev() error {
	return r.Send(CommandPrev, nil)
}

func (r *Renderer) OnSelectionChanged(fn func(domain.Selection)) func() {
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

func (r *Renderer) OnDeselected(fn func()) func() {
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

func (r *Renderer) HasSelection() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

func (r *Renderer) Ready() <-chan struct{} {
	return r.ready
}

func (r *Renderer) Annotations() domain.Annotations {
	return annotations{r}
}

type annotations struct {
	r *Renderer
}

func (a annotations) Add(kind domain.AnnotationKind, cfiRange, payload string, onClick domain.ClickHandler, styleClass string, style map[string]string) error {
	if err := a.r.Send(CommandAnnotationAdd, annotationAddPayload{
		Kind:       string(kind),
		CFIRange:   cfiRange,
		Payload:    payload,
		StyleClass: styleClass,
		Style:      style,
	}); err != nil {
		return err
	}
	a.r.mu.Lock()
	a.r.clicks[cfiRange] = onClick
	a.r.mu.Unlock()
	return nil
}

func (a annotations) Remove(cfiRange string, kind domain.AnnotationKind) error {
	a.r.mu.Lock()
	delete(a.r.clicks, cfiRange)
	a.r.mu.Unlock()
	return a.r.Send(CommandAnnotationRemove, annotationRemovePayload{Kind: string(kind), CFIRange: cfiRange})
}

func (r *Renderer) readPump(ctx context.Context, handle func(context.Context, Message)) {
	r.conn.SetReadLimit(1 << 20)
	_ = r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		select {
		case <-r.done:
			return nil
		default:
		}
		return r.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !r.closed() {
				r.logger.Warn("Renderer connection dropped", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			r.logger.Warn("Discarding malformed renderer frame", "error", err)
			continue
		}
		if r.dispatchEvent(msg) {
			continue
		}
		if handle != nil {
			handle(ctx, msg)
		}
	}
}

// dispatchEvent consumes renderer events and reports whether msg was one.
func (r *Renderer) dispatchEvent(msg Message) bool {
	switch msg.Type {
	case EventRendered:
		r.readyOnce.Do(func() { close(r.ready) })

	case EventSelected:
		var sel domain.Selection
		if err := json.Unmarshal(msg.Payload, &sel); err != nil {
			r.logger.Warn("Invalid selection event", "error", err)
			return true
		}
		r.mu.Lock()
		// A blank selection counts as none.
		r.selected = strings.TrimSpace(sel.Text) != ""
		fns := make([]func(domain.Selection), 0, len(r.selectFns))
		for _, fn := range r.selectFns {
			fns = append(fns, fn)
		}
		r.mu.Unlock()
		for _, fn := range fns {
			fn(sel)
		}

	case EventDeselected:
		r.mu.Lock()
		r.selected = false
		fns := make([]func(), 0, len(r.deselectFns))
		for _, fn := range r.deselectFns {
			fns = append(fns, fn)
		}
		r.mu.Unlock()
		for _, fn := range fns {
			fn()
		}

	case EventSelectionState:
		var p selectionStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			r.logger.Warn("Invalid selection state event", "error", err)
			return true
		}
		r.mu.Lock()
		r.selected = p.HasSelection
		r.mu.Unlock()

	case EventAnnotationClicked:
		var p annotationClickedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			r.logger.Warn("Invalid annotation click event", "error", err)
			return true
		}
		r.mu.Lock()
		onClick := r.clicks[p.CFIRange]
		r.mu.Unlock()
		if onClick == nil {
			r.logger.Debug("Click on unregistered overlay", "cfi_range", p.CFIRange)
			return true
		}
		onClick(p.AnnotationClick)

	default:
		return false
	}
	return true
}

func (r *Renderer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-r.send:
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				r.logger.Debug("Renderer write failed", "error", err)
				r.Close()
				return
			}
		case <-ticker.C:
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.Close()
				return
			}
		case <-r.done:
			r.drain()
			_ = r.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// drain flushes frames queued before Close.
func (r *Renderer) drain() {
	for {
		select {
		case frame := <-r.send:
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (r *Renderer) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
