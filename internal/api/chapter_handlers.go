package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkcast/inkcast-server/internal/domain"
	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/spans"
)

func (s *Server) registerChapterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submitChapterSource",
		Method:        http.MethodPost,
		Path:          "/api/v1/chapters",
		Summary:       "Submit chapter source",
		Description:   "Runs a build from a chapter source payload. Unchanged text returns the existing build.",
		Tags:          []string{"Chapters"},
		DefaultStatus: http.StatusCreated,
	}, s.handleSubmitChapterSource)

	huma.Register(s.api, huma.Operation{
		OperationID: "listChapters",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/chapters",
		Summary:     "List book chapters",
		Tags:        []string{"Chapters"},
	}, s.handleListChapters)

	huma.Register(s.api, huma.Operation{
		OperationID: "getChapter",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}",
		Summary:     "Get chapter",
		Tags:        []string{"Chapters"},
	}, s.handleGetChapter)

	huma.Register(s.api, huma.Operation{
		OperationID: "listChapterBuilds",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}/builds",
		Summary:     "List chapter builds",
		Description: "Build history for a chapter, newest canonical version first",
		Tags:        []string{"Builds"},
	}, s.handleListChapterBuilds)

	huma.Register(s.api, huma.Operation{
		OperationID: "verifyBuildCoverage",
		Method:      http.MethodGet,
		Path:        "/api/v1/builds/{id}/coverage",
		Summary:     "Verify build span coverage",
		Description: "Re-validates paragraph span coverage against the build's persisted rows",
		Tags:        []string{"Builds"},
	}, s.handleVerifyBuildCoverage)
}

// === DTOs ===

// ChapterSourceBody is the upstream text payload for one chapter build.
type ChapterSourceBody struct {
	BookID       string   `json:"book_id" validate:"required" doc:"Owning book ID"`
	Title        string   `json:"title" validate:"omitempty,max=500" doc:"Chapter title"`
	ChapterIndex int      `json:"chapter_index" validate:"gte=0" doc:"Zero-based position within the book"`
	Chunks       []string `json:"chunks" validate:"required,min=1" doc:"Ordered raw TTS text chunks"`
	Paragraphs   []string `json:"paragraphs" validate:"required,min=1" doc:"Ordered display paragraphs"`
}

// ChapterSourceInput wraps the source payload for Huma.
type ChapterSourceInput struct {
	Body ChapterSourceBody
}

// BuildOutput wraps a chapter build for Huma.
type BuildOutput struct {
	Body domain.ChapterBuild
}

// ChapterOutput wraps a chapter for Huma.
type ChapterOutput struct {
	Body domain.Chapter
}

// ChapterListOutput wraps a chapter list for Huma.
type ChapterListOutput struct {
	Body struct {
		Chapters []*domain.Chapter `json:"chapters"`
	}
}

// BuildListOutput wraps a build list for Huma.
type BuildListOutput struct {
	Body struct {
		Builds []*domain.ChapterBuild `json:"builds"`
	}
}

// BookIDInput carries the book path parameter.
type BookIDInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
}

// ChapterIDInput carries the chapter path parameter.
type ChapterIDInput struct {
	ID string `path:"id" doc:"Chapter ID"`
}

// BuildIDInput carries the build path parameter.
type BuildIDInput struct {
	ID string `path:"id" doc:"Build ID"`
}

// CoverageOutput wraps a span coverage report for Huma.
type CoverageOutput struct {
	Body struct {
		Valid  bool                  `json:"valid"`
		Report *spans.CoverageReport `json:"report"`
	}
}

// === Handlers ===

func (s *Server) handleSubmitChapterSource(ctx context.Context, input *ChapterSourceInput) (*BuildOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, huma.Error400BadRequest("invalid chapter source", err)
	}

	source := domain.ChapterSource{
		BookID:       input.Body.BookID,
		Title:        input.Body.Title,
		ChapterIndex: input.Body.ChapterIndex,
		Chunks:       input.Body.Chunks,
		Paragraphs:   input.Body.Paragraphs,
	}

	build, err := s.services.Chapter.ProcessSource(ctx, source)
	if err != nil {
		s.logger.Error("build from api submission failed",
			"book_id", source.BookID, "chapter_index", source.ChapterIndex, "error", err)
		return nil, huma.Error500InternalServerError("build failed", err)
	}

	return &BuildOutput{Body: *build}, nil
}

func (s *Server) handleListChapters(ctx context.Context, input *BookIDInput) (*ChapterListOutput, error) {
	chapters, err := s.services.Chapter.ListChapters(ctx, input.BookID)
	if err != nil {
		return nil, huma.Error500InternalServerError("list chapters failed", err)
	}

	out := &ChapterListOutput{}
	out.Body.Chapters = chapters
	return out, nil
}

func (s *Server) handleGetChapter(ctx context.Context, input *ChapterIDInput) (*ChapterOutput, error) {
	chapter, err := s.services.Chapter.GetChapter(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("chapter not found", err)
	}
	return &ChapterOutput{Body: *chapter}, nil
}

func (s *Server) handleVerifyBuildCoverage(ctx context.Context, input *BuildIDInput) (*CoverageOutput, error) {
	report, err := s.services.Chapter.VerifyBuild(ctx, input.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, huma.Error404NotFound("build not found", err)
		}
		return nil, huma.Error500InternalServerError("verify build failed", err)
	}

	out := &CoverageOutput{}
	out.Body.Valid = report.Valid()
	out.Body.Report = report
	return out, nil
}

func (s *Server) handleListChapterBuilds(ctx context.Context, input *ChapterIDInput) (*BuildListOutput, error) {
	builds, err := s.services.Chapter.ListBuilds(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("chapter not found", err)
	}

	out := &BuildListOutput{}
	out.Body.Builds = builds
	return out, nil
}
