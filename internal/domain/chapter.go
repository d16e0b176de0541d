// Package domain defines the core entities of the chapter audio pipeline:
// chapters, immutable builds, segments, audio groups, and paragraph spans.
package domain

import "time"

// Chapter is the owning entity for audio builds. A chapter has at most one
// active build at a time; historical builds remain queryable.
type Chapter struct {
	ID           string `json:"id"`
	BookID       string `json:"book_id"`
	Title        string `json:"title"`
	ChapterIndex int    `json:"chapter_index"`

	// ActiveBuildID points at the build served to playback clients.
	// Empty until the first build is published.
	ActiveBuildID string `json:"active_build_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChapterSource is the upstream text payload for one chapter: the ordered
// raw TTS chunks and the ordered display paragraphs. Both are produced by
// the external text pipeline; this service never re-derives them.
type ChapterSource struct {
	BookID       string   `json:"book_id"`
	Title        string   `json:"title"`
	ChapterIndex int      `json:"chapter_index"`
	Chunks       []string `json:"chunks"`
	Paragraphs   []string `json:"paragraphs"`
}
