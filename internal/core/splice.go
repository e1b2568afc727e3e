package core

import "fmt"

// Splice applies a group of edits to content by byte-splicing. Fixes must be
// sorted descending by span start and must not overlap; under that order no
// edit's span shifts before it is applied. The input slice is not modified.
func Splice(content []byte, fixes []Fix) ([]byte, error) {
	out := append([]byte(nil), content...)
	prevStart := len(content)
	for _, fix := range fixes {
		span := fix.Location.Span
		if !span.Valid() || span.End > len(content) {
			return nil, fmt.Errorf("fix %s span [%d,%d) outside file bounds (%d bytes)",
				fix.ID, span.Start, span.End, len(content))
		}
		if span.End > prevStart {
			return nil, fmt.Errorf("fix %s span [%d,%d) overlaps or follows previous edit at %d",
				fix.ID, span.Start, span.End, prevStart)
		}
		tail := append([]byte(nil), out[span.End:]...)
		out = append(out[:span.Start], []byte(fix.ReplacementText)...)
		out = append(out, tail...)
		prevStart = span.Start
	}
	return out, nil
}
