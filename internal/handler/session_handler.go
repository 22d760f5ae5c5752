package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"epub-reader/internal/bridge"
	"epub-reader/internal/domain"
	"epub-reader/internal/reader"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// SessionOptions carries the reader tuning applied to each websocket session.
type SessionOptions struct {
	Debounce       time.Duration
	MenuOffsetY    float64
	AllowedOrigins []string
}

// SessionHandler upgrades a request into a live reader session for one document.
type SessionHandler struct {
	documentService  domain.DocumentService
	highlightService domain.HighlightService
	positionService  domain.PositionService
	logger           domain.Logger
	opts             SessionOptions
	upgrader         websocket.Upgrader

	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
}

func NewSessionHandler(documentService domain.DocumentService, highlightService domain.HighlightService, positionService domain.PositionService, logger domain.Logger, opts SessionOptions) *SessionHandler {
	h := &SessionHandler{
		documentService:  documentService,
		highlightService: highlightService,
		positionService:  positionService,
		logger:           logger,
		opts:             opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// OpenSession handles GET /documents/{documentId}/session
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentId"]

	if _, err := h.documentService.GetDocument(r.Context(), documentID); err != nil {
		writeAppError(w, err)
		return
	}

	if !h.track() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer h.sessions.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.logger.Warn("Websocket upgrade failed", "document_id", documentID, "error", err)
		return
	}

	h.logger.Info("Reader session connected", "document_id", documentID)
	bridge.Serve(r.Context(), conn, h.logger, func(rend *bridge.Renderer) *reader.Session {
		return reader.NewSession(rend, h.highlightService, h.logger, bridge.SessionOptions(rend, reader.Options{
			DocumentID:  documentID,
			Debounce:    h.opts.Debounce,
			MenuOffsetY: h.opts.MenuOffsetY,
			Positions:   h.positionService,
		}))
	})
	h.logger.Info("Reader session disconnected", "document_id", documentID)
}

// Wait refuses new sessions and blocks until the running ones have finished
// or ctx is done. Hijacked connections are not covered by http.Server.Shutdown.
func (h *SessionHandler) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *SessionHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.sessions.Add(1)
	return true
}

// checkOrigin accepts same-host requests, clients without an Origin header
// and the configured CORS origins.
func (h *SessionHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
