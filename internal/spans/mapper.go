// Package spans maps display paragraphs onto contiguous segment ranges
// within one build, and validates that the mapping covers every segment
// exactly once.
package spans

import (
	"sort"
	"strings"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/normalize"
)

// matchRatio is the fraction of a paragraph's normalized length that must be
// covered by accumulated segment text before the paragraph's span closes.
// Segment boundaries rarely align exactly with paragraph boundaries, so the
// match is tolerant of small drift.
const matchRatio = 0.8

// Map assigns each paragraph an inclusive segment-index range. Segments are
// consumed greedily in order: a paragraph's span grows until the accumulated
// normalized text reaches matchRatio of the paragraph's normalized length.
// The final paragraph absorbs any trailing segments so the mapping always
// partitions the full segment range.
//
// Char offsets are derived from positions in the build's canonical text
// (the space-join of all segments' normalized text); the segment range is
// the source of truth.
func Map(paragraphs []string, segments []domain.Segment) ([]domain.ParagraphSpan, error) {
	if len(paragraphs) == 0 {
		return nil, errors.Validation("no paragraphs to map")
	}
	if len(segments) == 0 {
		return nil, errors.Validation("no segments to map")
	}

	ordered := make([]domain.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SegmentIndex < ordered[j].SegmentIndex
	})

	// Canonical-text offsets for each segment: start position of segment i
	// in the space-joined normalized text.
	starts := make([]int, len(ordered))
	offset := 0
	for i, seg := range ordered {
		starts[i] = offset
		offset += len(seg.TextNormalized)
		if i < len(ordered)-1 {
			offset++ // joining space
		}
	}
	canonicalLen := offset

	spans := make([]domain.ParagraphSpan, 0, len(paragraphs))
	cursor := 0

	for paraIdx, para := range paragraphs {
		paraText := normalize.Text(para)

		if cursor >= len(ordered) {
			// Ran out of segments: remaining paragraphs collapse onto the
			// last segment so the span list stays complete. Coverage
			// validation will reject the build if this produced overlaps.
			last := len(ordered) - 1
			spans = append(spans, buildSpan(paraIdx, last, last, ordered, starts, canonicalLen))
			continue
		}

		start := cursor
		matched := 0
		for cursor < len(ordered) {
			matched += len(ordered[cursor].TextNormalized) + 1
			cursor++
			if float64(matched) >= float64(len(paraText))*matchRatio {
				break
			}
		}
		end := cursor - 1

		// The final paragraph owns everything that remains.
		if paraIdx == len(paragraphs)-1 && cursor < len(ordered) {
			end = len(ordered) - 1
			cursor = len(ordered)
		}

		spans = append(spans, buildSpan(paraIdx, start, end, ordered, starts, canonicalLen))
	}

	return spans, nil
}

func buildSpan(paraIdx, start, end int, segments []domain.Segment, starts []int, canonicalLen int) domain.ParagraphSpan {
	endChar := canonicalLen
	if end < len(segments)-1 {
		endChar = starts[end] + len(segments[end].TextNormalized)
	}
	return domain.ParagraphSpan{
		ParagraphIndex:    paraIdx,
		StartSegmentIndex: segments[start].SegmentIndex,
		EndSegmentIndex:   segments[end].SegmentIndex,
		StartCharOffset:   starts[start],
		EndCharOffset:     endChar,
	}
}

// RenderParagraph joins the display text of the segments covered by a span.
// This is a derived value; callers cache it keyed by build.
func RenderParagraph(span domain.ParagraphSpan, segments []domain.Segment) string {
	var parts []string
	for _, seg := range segments {
		if seg.SegmentIndex >= span.StartSegmentIndex && seg.SegmentIndex <= span.EndSegmentIndex {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}
