// Package segment turns a chapter's raw text chunks into TTS-ready segments
// with fixed size bounds and a checked text/text_normalized contract.
//
// The pass order matters: short chunks are merged forward first, then merged
// chunks exceeding the maximum are split back apart at sentence boundaries.
// Only after both passes are indices assigned and text normalized.
package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/normalize"
)

// Options bound segment sizes in characters of display text.
type Options struct {
	MinChars int // merge chunks shorter than this (headings exempt)
	MaxChars int // split chunks longer than this at sentence boundaries
	MinWords int // chunks with fewer words are also merged
}

// DefaultOptions returns the production segment bounds.
func DefaultOptions() Options {
	return Options{MinChars: 60, MaxChars: 420, MinWords: 3}
}

// oversizedFactor caps a single unsplittable sentence. A sentence longer
// than oversizedFactor*MaxChars fails the build instead of producing an
// unboundedly large segment.
const oversizedFactor = 4

// Normalizer produces size-bounded segments from raw chapter chunks.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a segment normalizer with the given bounds.
func NewNormalizer(opts Options) *Normalizer {
	if opts.MinChars <= 0 || opts.MaxChars <= 0 {
		opts = DefaultOptions()
	}
	return &Normalizer{opts: opts}
}

// Process runs the merge and split passes over the raw chunks and returns
// the final ordered segments with contiguous 0-based indices and their
// canonical normalized text.
func (n *Normalizer) Process(chunks []string) ([]domain.Segment, error) {
	merged := n.mergeShort(chunks)

	var final []piece
	for _, p := range merged {
		if len(p.text) <= n.opts.MaxChars || p.heading {
			final = append(final, p)
			continue
		}
		split, err := n.splitLong(p.text)
		if err != nil {
			return nil, err
		}
		final = append(final, split...)
	}

	segments := make([]domain.Segment, len(final))
	for i, p := range final {
		segments[i] = domain.Segment{
			SegmentIndex:   i,
			Text:           p.text,
			TextNormalized: normalize.Text(p.text),
			Heading:        p.heading,
		}
	}
	return segments, nil
}

type piece struct {
	text    string
	heading bool
}

// mergeShort concatenates sub-minimum chunks with the following chunk(s)
// until the minimum is met or input is exhausted. Headings are emitted
// standalone and never absorb neighbors.
func (n *Normalizer) mergeShort(chunks []string) []piece {
	var merged []piece
	var pending string

	flushPending := func() {
		if pending == "" {
			return
		}
		if len(merged) > 0 && !merged[len(merged)-1].heading {
			merged[len(merged)-1].text += " " + pending
		} else {
			merged = append(merged, piece{text: pending})
		}
		pending = ""
	}

	for _, raw := range chunks {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		if IsHeading(text) {
			flushPending()
			merged = append(merged, piece{text: text, heading: true})
			continue
		}

		if len(text) < n.opts.MinChars || wordCount(text) < n.opts.MinWords {
			if pending != "" {
				pending += " " + text
			} else {
				pending = text
			}
			// A run of short chunks can itself satisfy the minimum.
			if len(pending) >= n.opts.MinChars && wordCount(pending) >= n.opts.MinWords {
				merged = append(merged, piece{text: pending})
				pending = ""
			}
			continue
		}

		if pending != "" {
			text = pending + " " + text
			pending = ""
		}
		merged = append(merged, piece{text: text})
	}

	flushPending()
	return merged
}

// splitLong splits text at sentence boundaries so every part stays at or
// under MaxChars. A single sentence longer than MaxChars is kept whole (the
// documented unsplittable-sentence exception) up to a hard ceiling.
func (n *Normalizer) splitLong(text string) ([]piece, error) {
	sentences := SplitSentences(text)

	var parts []piece
	var current string

	for _, sentence := range sentences {
		if len(sentence) > oversizedFactor*n.opts.MaxChars {
			return nil, errors.Validationf(
				"unsplittable sentence of %d chars exceeds hard ceiling %d",
				len(sentence), oversizedFactor*n.opts.MaxChars,
			)
		}

		switch {
		case current == "":
			current = sentence
		case len(current)+1+len(sentence) <= n.opts.MaxChars:
			current += " " + sentence
		default:
			parts = append(parts, piece{text: current})
			current = sentence
		}
	}
	if current != "" {
		parts = append(parts, piece{text: current})
	}
	return parts, nil
}

// headingPattern matches structural markers: markdown headings and common
// chapter/part labels, with or without trailing numbering.
var headingPattern = regexp.MustCompile(`(?i)^(#{1,6}\s+\S|(chapter|part|book|section|prologue|epilogue|interlude|appendix)\b[\s\d.:IVXLC-]*$)`)

// IsHeading reports whether a chunk is a structural marker exempt from the
// minimum length bound.
func IsHeading(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 120 {
		return false
	}
	if headingPattern.MatchString(text) {
		return true
	}
	// Short all-caps lines without terminal punctuation read as headings
	// in extracted book text.
	if len(text) <= 60 && !strings.ContainsAny(text, ".!?") && isAllCaps(text) {
		return true
	}
	return false
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// abbreviations that end with a period but do not terminate a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "fig": true, "no": true, "vol": true,
}

// SplitSentences splits text after terminal punctuation (. ! ? …) followed
// by whitespace, keeping closing quotes with the sentence they end. Decimal
// numbers and common abbreviations do not terminate a sentence.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' && r != '…' {
			continue
		}

		// Decimal point: digit on both sides.
		if r == '.' && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}

		// Abbreviation: the word ending here is a known non-terminal.
		if r == '.' && isAbbreviation(runes, i) {
			continue
		}

		// Absorb trailing closers: quotes, parens, additional punctuation.
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}

		// A boundary requires following whitespace (or end of text).
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}

		sentence := strings.TrimSpace(string(runes[start:end]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end
		i = end - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '.', '!', '?', '…':
		return true
	}
	return false
}

func isAbbreviation(runes []rune, dot int) bool {
	end := dot
	start := dot - 1
	for start >= 0 && (unicode.IsLetter(runes[start]) || runes[start] == '.') {
		start--
	}
	word := strings.ToLower(strings.TrimSuffix(string(runes[start+1:end]), "."))
	return abbreviations[word]
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
