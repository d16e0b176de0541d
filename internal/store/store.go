// Package store defines the persistence interface for chapters, builds, and
// their derived artifacts. Implementations live in subpackages.
package store

import (
	"context"
	"time"

	"github.com/inkcast/inkcast-server/internal/domain"
)

// Store is the persistence boundary for the build pipeline and playback.
type Store interface {
	ChapterStore
	BuildStore
	ArtifactStore

	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// ChapterStore manages chapter records and the active-build pointer.
type ChapterStore interface {
	CreateChapter(ctx context.Context, chapter *domain.Chapter) error
	GetChapter(ctx context.Context, id string) (*domain.Chapter, error)
	GetChapterByBookIndex(ctx context.Context, bookID string, chapterIndex int) (*domain.Chapter, error)
	ListChapters(ctx context.Context, bookID string) ([]*domain.Chapter, error)
}

// BuildStore manages immutable build records.
type BuildStore interface {
	// CreateBuild inserts the build and assigns its CanonicalVersion
	// atomically: one more than the chapter's current maximum. The
	// assigned version is written back to the passed build.
	CreateBuild(ctx context.Context, build *domain.ChapterBuild) error

	GetBuild(ctx context.Context, id string) (*domain.ChapterBuild, error)
	GetActiveBuild(ctx context.Context, chapterID string) (*domain.ChapterBuild, error)
	ListBuilds(ctx context.Context, chapterID string) ([]*domain.ChapterBuild, error)

	// FindReadyBuildByHash returns the newest ready build for the chapter
	// whose canonical hash matches, or ErrNotFound.
	FindReadyBuildByHash(ctx context.Context, chapterID, hash string) (*domain.ChapterBuild, error)

	// MarkBuildFailed records a failure reason. The active pointer is
	// never touched by a failing build.
	MarkBuildFailed(ctx context.Context, id, reason string) error

	// AbandonStaleBuilds marks every pending build of the chapter except
	// keepID as abandoned. Returns the number of builds abandoned.
	AbandonStaleBuilds(ctx context.Context, chapterID, keepID string) (int, error)

	// PublishBuild marks the build ready and repoints the chapter's
	// active build at it, in one transaction. It fails if the build is
	// not pending or does not belong to the chapter.
	PublishBuild(ctx context.Context, chapterID, buildID string) error

	// ActivateBuild repoints the chapter's active build at an already
	// ready build of the same chapter, used when a source resubmission
	// matches an earlier build's canonical text.
	ActivateBuild(ctx context.Context, chapterID, buildID string) error

	// ListActiveBuilds returns every build currently referenced by a
	// chapter's active pointer, for rebuilding derived state.
	ListActiveBuilds(ctx context.Context) ([]*domain.ChapterBuild, error)

	// ListExpiredBuilds returns failed or abandoned builds created before
	// the cutoff, for garbage collection.
	ListExpiredBuilds(ctx context.Context, cutoff time.Time) ([]*domain.ChapterBuild, error)

	// DeleteBuild removes the build and all of its artifacts. Deleting a
	// chapter's active build is rejected.
	DeleteBuild(ctx context.Context, id string) error
}

// ArtifactStore manages the derived rows of a build: segments, groups, spans.
type ArtifactStore interface {
	// SaveBuildArtifacts persists all artifacts of a build in one
	// transaction. It is called exactly once per build, after encoding.
	SaveBuildArtifacts(ctx context.Context, buildID string, segments []domain.Segment, groups []domain.AudioGroup, spans []domain.ParagraphSpan) error

	ListSegments(ctx context.Context, buildID string) ([]domain.Segment, error)
	ListGroups(ctx context.Context, buildID string) ([]domain.AudioGroup, error)
	ListSpans(ctx context.Context, buildID string) ([]domain.ParagraphSpan, error)
}
