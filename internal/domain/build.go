package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BuildStatus represents the lifecycle state of a chapter build.
type BuildStatus string

const (
	BuildStatusPending   BuildStatus = "pending"   // created, pipeline not finished
	BuildStatusReady     BuildStatus = "ready"     // all artifacts persisted and validated
	BuildStatusFailed    BuildStatus = "failed"    // synthesis/encoding/validation failed
	BuildStatusAbandoned BuildStatus = "abandoned" // superseded before completion
)

// ChapterBuild is an immutable snapshot of a chapter's segment/group layout.
// canonical_text, canonical_hash, and canonical_version never change after
// creation; reprocessing a chapter creates a new build with a higher version.
type ChapterBuild struct {
	ID        string `json:"id"`
	ChapterID string `json:"chapter_id"`

	// CanonicalVersion is strictly increasing per chapter and assigned
	// atomically at creation time.
	CanonicalVersion int `json:"canonical_version"`

	// CanonicalText is the ordered join of all segments' normalized text.
	CanonicalText string `json:"canonical_text"`
	CanonicalHash string `json:"canonical_hash"`

	Status BuildStatus `json:"status"`
	Error  string      `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// CanonicalHash computes the integrity digest for a build's canonical text.
func CanonicalHash(canonicalText string) string {
	sum := sha256.Sum256([]byte(canonicalText))
	return hex.EncodeToString(sum[:])
}

// MarkReady transitions the build to ready and stamps the publish time.
func (b *ChapterBuild) MarkReady() {
	b.Status = BuildStatusReady
	now := time.Now()
	b.PublishedAt = &now
}

// MarkFailed transitions the build to failed with the given reason.
func (b *ChapterBuild) MarkFailed(reason string) {
	b.Status = BuildStatusFailed
	b.Error = reason
}

// IsTerminal reports whether the build can no longer change state.
func (b *ChapterBuild) IsTerminal() bool {
	return b.Status == BuildStatusReady || b.Status == BuildStatusFailed || b.Status == BuildStatusAbandoned
}
