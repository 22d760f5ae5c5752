package domain

import "errors"

// Domain errors
var (
	ErrHighlightNotFound       = errors.New("highlight not found")
	ErrHighlightExists         = errors.New("highlight already exists")
	ErrDocumentNotFound        = errors.New("document not found")
	ErrReadingPositionNotFound = errors.New("reading position not found")
	ErrSessionNotReady         = errors.New("reader session not ready")
	ErrNoSelection             = errors.New("no active selection")
	ErrUnknownColor            = errors.New("unknown highlight color")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
