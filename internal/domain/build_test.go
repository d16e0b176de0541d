package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalHash(t *testing.T) {
	// Known SHA-256 of "hello world".
	assert.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		CanonicalHash("hello world"),
	)

	// Deterministic and input-sensitive.
	assert.Equal(t, CanonicalHash("a"), CanonicalHash("a"))
	assert.NotEqual(t, CanonicalHash("a"), CanonicalHash("b"))
}

func TestChapterBuild_Transitions(t *testing.T) {
	b := &ChapterBuild{Status: BuildStatusPending}
	assert.False(t, b.IsTerminal())

	b.MarkReady()
	assert.Equal(t, BuildStatusReady, b.Status)
	assert.NotNil(t, b.PublishedAt)
	assert.True(t, b.IsTerminal())

	f := &ChapterBuild{Status: BuildStatusPending}
	f.MarkFailed("encode exhausted retries")
	assert.Equal(t, BuildStatusFailed, f.Status)
	assert.Equal(t, "encode exhausted retries", f.Error)
	assert.True(t, f.IsTerminal())
}

func TestAudioGroup_Contains(t *testing.T) {
	g := &AudioGroup{StartTimeMs: 34000, DurationMs: 36000}

	assert.False(t, g.Contains(33999))
	assert.True(t, g.Contains(34000))
	assert.True(t, g.Contains(69999))
	assert.False(t, g.Contains(70000))
	assert.Equal(t, int64(70000), g.EndTimeMs())
}

func TestAudioGroup_SegmentCount(t *testing.T) {
	g := &AudioGroup{StartSegmentIndex: 3, EndSegmentIndex: 3}
	assert.Equal(t, 1, g.SegmentCount())

	g.EndSegmentIndex = 7
	assert.Equal(t, 5, g.SegmentCount())
}
