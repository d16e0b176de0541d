package service

import (
	"context"
	"errors"
	"time"

	"github.com/inkcast/inkcast-server/internal/domain"
	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/id"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/spans"
	"github.com/inkcast/inkcast-server/internal/store"
)

// ChapterService manages chapter records and drives builds from incoming
// source payloads.
type ChapterService struct {
	store  store.Store
	builds *BuildService
	logger *logger.Logger
}

// NewChapterService creates a new chapter service.
func NewChapterService(st store.Store, builds *BuildService, log *logger.Logger) *ChapterService {
	return &ChapterService{store: st, builds: builds, logger: log}
}

// CreateChapter registers a chapter without building it.
func (s *ChapterService) CreateChapter(ctx context.Context, source domain.ChapterSource) (*domain.Chapter, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chapter := &domain.Chapter{
		ID:           id.MustGenerate("ch"),
		BookID:       source.BookID,
		Title:        source.Title,
		ChapterIndex: source.ChapterIndex,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateChapter(ctx, chapter); err != nil {
		return nil, mapStoreErr(err, "chapter")
	}

	s.logger.Info("chapter created",
		"chapter_id", chapter.ID, "book_id", chapter.BookID,
		"chapter_index", chapter.ChapterIndex)
	return chapter, nil
}

// GetChapter returns one chapter by ID.
func (s *ChapterService) GetChapter(ctx context.Context, chapterID string) (*domain.Chapter, error) {
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, mapStoreErr(err, "chapter")
	}
	return chapter, nil
}

// ListChapters returns a book's chapters ordered by chapter index.
func (s *ChapterService) ListChapters(ctx context.Context, bookID string) ([]*domain.Chapter, error) {
	chapters, err := s.store.ListChapters(ctx, bookID)
	if err != nil {
		return nil, mapStoreErr(err, "chapters")
	}
	return chapters, nil
}

// VerifyBuild re-checks paragraph span coverage over a build's persisted
// rows, independent of the validation that ran when the build was created.
func (s *ChapterService) VerifyBuild(ctx context.Context, buildID string) (*spans.CoverageReport, error) {
	return s.builds.VerifyBuild(ctx, buildID)
}

// ListBuilds returns a chapter's build history, newest version first.
func (s *ChapterService) ListBuilds(ctx context.Context, chapterID string) ([]*domain.ChapterBuild, error) {
	if _, err := s.store.GetChapter(ctx, chapterID); err != nil {
		return nil, mapStoreErr(err, "chapter")
	}
	builds, err := s.store.ListBuilds(ctx, chapterID)
	if err != nil {
		return nil, mapStoreErr(err, "builds")
	}
	return builds, nil
}

// ProcessSource finds or creates the chapter addressed by (book, index) and
// runs a build from the payload. Ingest and the API both funnel through
// here.
func (s *ChapterService) ProcessSource(ctx context.Context, source domain.ChapterSource) (*domain.ChapterBuild, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}

	chapter, err := s.store.GetChapterByBookIndex(ctx, source.BookID, source.ChapterIndex)
	if errors.Is(err, store.ErrNotFound) {
		chapter, err = s.CreateChapter(ctx, source)
	} else if err != nil {
		err = mapStoreErr(err, "chapter")
	}
	if err != nil {
		return nil, err
	}

	return s.builds.BuildChapter(ctx, chapter.ID, source)
}

// validateSource rejects payloads the pipeline cannot build from.
func validateSource(source domain.ChapterSource) error {
	switch {
	case source.BookID == "":
		return apperrors.Validation("book_id is required")
	case source.ChapterIndex < 0:
		return apperrors.Validation("chapter_index must not be negative")
	case len(source.Chunks) == 0:
		return apperrors.Validation("chunks must not be empty")
	case len(source.Paragraphs) == 0:
		return apperrors.Validation("paragraphs must not be empty")
	}
	return nil
}
