package reader

import (
	"strings"

	"epub-reader/internal/domain"
)

// Filter returns the highlights whose text or note contains term, ignoring
// case. A blank term matches everything. The input order is preserved.
func Filter(highlights []*domain.Highlight, term string) []*domain.Highlight {
	blank := strings.TrimSpace(term) == ""
	term = strings.ToLower(term)
	out := make([]*domain.Highlight, 0, len(highlights))
	for _, h := range highlights {
		if blank ||
			strings.Contains(strings.ToLower(h.Text), term) ||
			strings.Contains(strings.ToLower(h.NoteText()), term) {
			out = append(out, h)
		}
	}
	return out
}
