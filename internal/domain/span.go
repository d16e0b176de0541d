package domain

// ParagraphSpan links one display paragraph to a contiguous, inclusive range
// of segment indices within a single build. The segment range is the source
// of truth; the char offsets are derived conveniences for clients.
type ParagraphSpan struct {
	ID      string `json:"id"`
	BuildID string `json:"build_id"`

	ParagraphIndex    int `json:"paragraph_index"`
	StartSegmentIndex int `json:"start_segment_index"`
	EndSegmentIndex   int `json:"end_segment_index"`

	// Offsets into the build's canonical text. Derived, not authoritative.
	StartCharOffset int `json:"start_char_offset"`
	EndCharOffset   int `json:"end_char_offset"`
}

// SegmentCount returns the number of segments covered by the span.
func (p *ParagraphSpan) SegmentCount() int {
	return p.EndSegmentIndex - p.StartSegmentIndex + 1
}
