package spans

import (
	"sort"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/errors"
)

// CoverageReport is the result of validating a build's span set. It is a
// pure query over persisted spans and segments, re-runnable at any time.
type CoverageReport struct {
	SegmentCount      int           `json:"segment_count"`
	UncoveredSegments []int         `json:"uncovered_segments,omitempty"`
	Overlaps          []SpanOverlap `json:"overlaps,omitempty"`
	InvalidSpans      []int         `json:"invalid_spans,omitempty"`
}

// SpanOverlap identifies a segment claimed by two paragraphs.
type SpanOverlap struct {
	SegmentIndex int `json:"segment_index"`
	ParagraphA   int `json:"paragraph_a"`
	ParagraphB   int `json:"paragraph_b"`
}

// Valid reports whether every segment is covered by exactly one span.
func (r *CoverageReport) Valid() bool {
	return len(r.UncoveredSegments) == 0 && len(r.Overlaps) == 0 && len(r.InvalidSpans) == 0
}

// Err converts the report into a coded error, or nil when valid. Overlaps
// take precedence since they indicate corrupted mapping rather than missing
// coverage.
func (r *CoverageReport) Err() error {
	if len(r.InvalidSpans) > 0 {
		return errors.Validationf("spans with inverted ranges for paragraphs %v", r.InvalidSpans)
	}
	if len(r.Overlaps) > 0 {
		o := r.Overlaps[0]
		return errors.SpanOverlapf("segment %d claimed by paragraphs %d and %d (%d overlaps total)",
			o.SegmentIndex, o.ParagraphA, o.ParagraphB, len(r.Overlaps)).WithDetails(r.Overlaps)
	}
	if len(r.UncoveredSegments) > 0 {
		return errors.CoverageGapf("%d segments not covered by any span, first is %d",
			len(r.UncoveredSegments), r.UncoveredSegments[0]).WithDetails(r.UncoveredSegments)
	}
	return nil
}

// ValidateCoverage checks that the spans partition [0, segmentCount) with no
// gaps and no overlaps, reporting every violation with the offending segment
// and paragraph indices.
func ValidateCoverage(spans []domain.ParagraphSpan, segmentCount int) *CoverageReport {
	report := &CoverageReport{SegmentCount: segmentCount}

	// owner[i] is the paragraph index covering segment i, or -1.
	owner := make([]int, segmentCount)
	for i := range owner {
		owner[i] = -1
	}

	ordered := make([]domain.ParagraphSpan, len(spans))
	copy(ordered, spans)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ParagraphIndex < ordered[j].ParagraphIndex
	})

	for _, span := range ordered {
		if span.EndSegmentIndex < span.StartSegmentIndex {
			report.InvalidSpans = append(report.InvalidSpans, span.ParagraphIndex)
			continue
		}
		for i := span.StartSegmentIndex; i <= span.EndSegmentIndex; i++ {
			if i < 0 || i >= segmentCount {
				report.InvalidSpans = append(report.InvalidSpans, span.ParagraphIndex)
				break
			}
			if owner[i] != -1 {
				report.Overlaps = append(report.Overlaps, SpanOverlap{
					SegmentIndex: i,
					ParagraphA:   owner[i],
					ParagraphB:   span.ParagraphIndex,
				})
				continue
			}
			owner[i] = span.ParagraphIndex
		}
	}

	for i, para := range owner {
		if para == -1 {
			report.UncoveredSegments = append(report.UncoveredSegments, i)
		}
	}

	return report
}
