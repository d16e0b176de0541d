package spans

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/normalize"
)

// segmentsFor builds one segment per sentence of each paragraph, so the
// mapper sees text that genuinely derives from the paragraphs.
func segmentsFor(paragraphTexts ...string) []domain.Segment {
	var segments []domain.Segment
	for _, para := range paragraphTexts {
		for _, sentence := range strings.Split(para, "|") {
			segments = append(segments, domain.Segment{
				SegmentIndex:   len(segments),
				Text:           sentence,
				TextNormalized: normalize.Text(sentence),
			})
		}
	}
	return segments
}

func TestMap_OneSegmentPerParagraph(t *testing.T) {
	paraA := "The first paragraph has a single sentence of reasonable length for one segment."
	paraB := "The second paragraph also fits comfortably inside one single narration segment."

	segments := segmentsFor(paraA, paraB)
	spans, err := Map([]string{paraA, paraB}, segments)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	assert.Equal(t, 0, spans[0].StartSegmentIndex)
	assert.Equal(t, 0, spans[0].EndSegmentIndex)
	assert.Equal(t, 1, spans[1].StartSegmentIndex)
	assert.Equal(t, 1, spans[1].EndSegmentIndex)
}

func TestMap_MultiSegmentParagraph(t *testing.T) {
	paraA := "The opening paragraph runs across several sentences.|Each sentence became its own segment downstream.|Together they reconstruct the paragraph."
	paraB := "A short closing paragraph with one segment only here."

	segments := segmentsFor(paraA, paraB)
	spans, err := Map([]string{strings.ReplaceAll(paraA, "|", " "), paraB}, segments)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	assert.Equal(t, 0, spans[0].StartSegmentIndex)
	assert.Equal(t, 2, spans[0].EndSegmentIndex)
	assert.Equal(t, 3, spans[1].StartSegmentIndex)
	assert.Equal(t, 3, spans[1].EndSegmentIndex)
}

func TestMap_FullCoverageNoOverlap(t *testing.T) {
	paras := []string{
		"Paragraph one is long enough to hold two sentences.|It really does hold exactly two of them.",
		"Paragraph two is shorter and holds just the one.",
		"Paragraph three closes the chapter with a final observation.|And one more trailing remark to absorb.",
	}
	displayParas := make([]string, len(paras))
	for i, p := range paras {
		displayParas[i] = strings.ReplaceAll(p, "|", " ")
	}

	segments := segmentsFor(paras...)
	spans, err := Map(displayParas, segments)
	require.NoError(t, err)

	report := ValidateCoverage(spans, len(segments))
	assert.True(t, report.Valid(), "coverage report: %+v", report)
	assert.NoError(t, report.Err())
}

func TestMap_LastParagraphAbsorbsTail(t *testing.T) {
	// The last paragraph's text is shorter than the segments that follow;
	// it must still own them so the mapping partitions the full range.
	segments := []domain.Segment{
		{SegmentIndex: 0, TextNormalized: "the only paragraph text lives here"},
		{SegmentIndex: 1, TextNormalized: "a trailing narration note"},
		{SegmentIndex: 2, TextNormalized: "and one more trailing segment"},
	}

	spans, err := Map([]string{"the only paragraph text lives here"}, segments)
	require.NoError(t, err)
	require.Len(t, spans, 1)

	assert.Equal(t, 0, spans[0].StartSegmentIndex)
	assert.Equal(t, 2, spans[0].EndSegmentIndex)
}

func TestMap_CharOffsets(t *testing.T) {
	segments := []domain.Segment{
		{SegmentIndex: 0, TextNormalized: "alpha beta"},
		{SegmentIndex: 1, TextNormalized: "gamma delta"},
	}

	spans, err := Map([]string{"alpha beta", "gamma delta"}, segments)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	canonical := "alpha beta gamma delta"
	assert.Equal(t, 0, spans[0].StartCharOffset)
	assert.Equal(t, len("alpha beta"), spans[0].EndCharOffset)
	assert.Equal(t, len("alpha beta")+1, spans[1].StartCharOffset)
	assert.Equal(t, len(canonical), spans[1].EndCharOffset)
}

func TestMap_Errors(t *testing.T) {
	_, err := Map(nil, []domain.Segment{{SegmentIndex: 0}})
	assert.Error(t, err)

	_, err = Map([]string{"text"}, nil)
	assert.Error(t, err)
}

func TestValidateCoverage_Gap(t *testing.T) {
	// Spans (0, 0..4) and (1, 6..9) over segments 0..9
	// leave segment 5 uncovered.
	spans := []domain.ParagraphSpan{
		{ParagraphIndex: 0, StartSegmentIndex: 0, EndSegmentIndex: 4},
		{ParagraphIndex: 1, StartSegmentIndex: 6, EndSegmentIndex: 9},
	}

	report := ValidateCoverage(spans, 10)
	assert.False(t, report.Valid())
	assert.Equal(t, []int{5}, report.UncoveredSegments)
	assert.ErrorContains(t, report.Err(), "segments not covered")
}

func TestValidateCoverage_Overlap(t *testing.T) {
	spans := []domain.ParagraphSpan{
		{ParagraphIndex: 0, StartSegmentIndex: 0, EndSegmentIndex: 5},
		{ParagraphIndex: 1, StartSegmentIndex: 4, EndSegmentIndex: 9},
	}

	report := ValidateCoverage(spans, 10)
	assert.False(t, report.Valid())
	require.Len(t, report.Overlaps, 2)
	assert.Equal(t, SpanOverlap{SegmentIndex: 4, ParagraphA: 0, ParagraphB: 1}, report.Overlaps[0])
	assert.ErrorContains(t, report.Err(), "claimed by paragraphs 0 and 1")
}

func TestValidateCoverage_InvertedRange(t *testing.T) {
	spans := []domain.ParagraphSpan{
		{ParagraphIndex: 0, StartSegmentIndex: 3, EndSegmentIndex: 1},
	}

	report := ValidateCoverage(spans, 4)
	assert.False(t, report.Valid())
	assert.Equal(t, []int{0}, report.InvalidSpans)
}

func TestValidateCoverage_Clean(t *testing.T) {
	spans := []domain.ParagraphSpan{
		{ParagraphIndex: 0, StartSegmentIndex: 0, EndSegmentIndex: 4},
		{ParagraphIndex: 1, StartSegmentIndex: 5, EndSegmentIndex: 9},
	}

	report := ValidateCoverage(spans, 10)
	assert.True(t, report.Valid())
	assert.NoError(t, report.Err())
}

func TestRenderParagraph(t *testing.T) {
	segments := []domain.Segment{
		{SegmentIndex: 0, Text: "First sentence."},
		{SegmentIndex: 1, Text: "Second sentence."},
		{SegmentIndex: 2, Text: "Third sentence."},
	}
	span := domain.ParagraphSpan{StartSegmentIndex: 0, EndSegmentIndex: 1}

	assert.Equal(t, "First sentence. Second sentence.", RenderParagraph(span, segments))
}

func TestMap_ManyParagraphsProperty(t *testing.T) {
	// Larger randomized-shape input: coverage must always hold.
	var paras []string
	var segments []domain.Segment
	for p := range 20 {
		var sentences []string
		for s := range (p % 3) + 1 {
			sentences = append(sentences, fmt.Sprintf("Paragraph %d sentence %d carries some words across the page.", p, s))
		}
		paras = append(paras, strings.Join(sentences, " "))
		for _, sentence := range sentences {
			segments = append(segments, domain.Segment{
				SegmentIndex:   len(segments),
				Text:           sentence,
				TextNormalized: normalize.Text(sentence),
			})
		}
	}

	spans, err := Map(paras, segments)
	require.NoError(t, err)
	require.Len(t, spans, len(paras))

	report := ValidateCoverage(spans, len(segments))
	assert.True(t, report.Valid(), "report: %+v", report)
}
