package bridge

import (
	"context"

	"epub-reader/internal/domain"
	"epub-reader/internal/reader"
	apperrors "epub-reader/pkg/errors"

	"github.com/gorilla/websocket"
)

// SessionFactory builds the reader session for a connected renderer.
type SessionFactory func(r *Renderer) *reader.Session

// Serve runs a reader session over conn until the browser disconnects or ctx
// is done. The session is opened once the browser reports "rendered", after
// which the loaded highlights are sent as a "highlights" command.
//
// When ctx ends first the session is closed while the socket is still up, so
// the browser receives the overlay removals before the close frame.
func Serve(ctx context.Context, conn *websocket.Conn, logger domain.Logger, newSession SessionFactory) {
	openCtx, cancelOpen := context.WithCancel(ctx)
	defer cancelOpen()
	runCtx, stopRun := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRun()

	r := NewRenderer(conn, logger)
	session := newSession(r)
	ctrl := NewController(session, r, logger)

	opened := make(chan struct{})
	go func() {
		defer close(opened)
		if err := session.Open(openCtx); err != nil {
			if openCtx.Err() == nil {
				logger.Warn("Reader session failed to open", "document_id", session.DocumentID(), "error", err)
				r.sendOrLog(CommandError, textPayload{Message: apperrors.GetMessage(err)})
			}
			return
		}
		r.sendOrLog(CommandHighlights, session.Highlights())
	}()

	torn := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(torn)
		session.Close()
		stopRun()
	})

	r.Run(runCtx, ctrl.Handle)
	if !stop() {
		<-torn
	}
	cancelOpen()
	<-opened
	session.Close()
}
