package repository

import (
	"regexp"
	"strings"
)

var reControl = regexp.MustCompile(`[\x00]`)

// sanitizeText removes characters that PostgreSQL rejects in text fields (notably NUL bytes).
func sanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = reControl.ReplaceAllString(s, "")
	// Escaped NUL sequences show up in text copied out of some EPUB content documents.
	s = strings.ReplaceAll(s, "\\u0000", "")
	return s
}
