package bridge

import (
	"context"
	"encoding/json"

	"epub-reader/internal/domain"
	"epub-reader/internal/reader"
	apperrors "epub-reader/pkg/errors"
)

// Controller applies reader actions received from the browser to a session
// and reports failures back over the same connection.
type Controller struct {
	session  *reader.Session
	renderer *Renderer
	logger   domain.Logger
}

func NewController(session *reader.Session, renderer *Renderer, logger domain.Logger) *Controller {
	return &Controller{session: session, renderer: renderer, logger: logger}
}

// SessionOptions returns reader options whose callbacks push menu, editor
// and notice updates to the browser.
func SessionOptions(r *Renderer, opts reader.Options) reader.Options {
	opts.OnMenu = func(m reader.Menu) { r.sendOrLog(CommandMenu, m) }
	opts.OnEditor = func(e reader.NoteEditor) { r.sendOrLog(CommandNoteEditor, e) }
	opts.OnNotice = func(msg string) { r.sendOrLog(CommandNotice, textPayload{Message: msg}) }
	return opts
}

// Handle processes one reader action.
func (c *Controller) Handle(ctx context.Context, msg Message) {
	if err := c.handle(ctx, msg); err != nil {
		c.logger.Debug("Reader action failed", "type", msg.Type, "error", err)
		c.renderer.sendOrLog(CommandError, textPayload{Message: apperrors.GetMessage(err)})
	}
}

func (c *Controller) handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case EventChooseColor:
		var p colorPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := c.session.CommitColor(ctx, p.Color)
		return err

	case EventChangeColor:
		var p colorPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := c.session.ChangeColor(ctx, p.ID, p.Color)
		return err

	case EventEditNote:
		var p highlightRef
		if err := decode(msg, &p); err != nil {
			return err
		}
		return c.session.EditNote(p.ID)

	case EventSaveNote:
		var p notePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := c.session.SaveNote(ctx, p.ID, p.Note)
		return err

	case EventCancelNote:
		c.session.CancelNote()
		return nil

	case EventRemove:
		var p highlightRef
		if err := decode(msg, &p); err != nil {
			return err
		}
		return c.session.Remove(ctx, p.ID)

	case EventGoTo:
		var p highlightRef
		if err := decode(msg, &p); err != nil {
			return err
		}
		return c.session.GoTo(p.ID)

	case EventNext:
		return c.renderer.Next()

	case EventPrev:
		return c.renderer.Prev()

	case EventRelocated:
		var p relocatedPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return c.session.Relocated(ctx, p.CFI, p.Percentage)

	case EventSearch:
		var p searchPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return c.renderer.Send(CommandHighlights, c.session.Search(p.Term))

	default:
		return apperrors.NewValidationError("unknown message type: "+msg.Type, nil)
	}
}

func decode(msg Message, v interface{}) error {
	if len(msg.Payload) == 0 {
		return apperrors.NewValidationError(msg.Type+": payload is required", nil)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return apperrors.NewValidationError(msg.Type+": invalid payload", err)
	}
	return nil
}

func (r *Renderer) sendOrLog(kind string, payload interface{}) {
	if err := r.Send(kind, payload); err != nil && err != ErrClosed {
		r.logger.Warn("Failed to send renderer command", "type", kind, "error", err)
	}
}
