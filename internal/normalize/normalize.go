// Package normalize provides canonical text normalization for TTS segments.
//
// The text/text_normalized contract requires that every persisted segment's
// normalized text equals exactly Text(segment.Text). Builds are rejected when
// the contract is violated, so this function must stay pure and deterministic.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Text returns the canonical form of s: Unicode NFKC normalization followed
// by whitespace collapse (any run of whitespace becomes a single space) and
// trimming. Idempotent: Text(Text(s)) == Text(s).
func Text(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether normalized is the canonical form of text.
func Equal(text, normalized string) bool {
	return Text(text) == normalized
}
