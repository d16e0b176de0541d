package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkcast/inkcast-server/internal/search"
	"github.com/inkcast/inkcast-server/internal/service"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchTranscripts",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search transcripts",
		Description: "Full-text search over published chapter transcripts. Each hit carries the audio position of the matched paragraph.",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// SearchInput contains parameters for transcript search.
type SearchInput struct {
	Query     string `query:"q" validate:"required,min=1,max=200" doc:"Search query"`
	BookID    string `query:"book_id" doc:"Restrict to one book"`
	ChapterID string `query:"chapter_id" doc:"Restrict to one chapter"`
	Limit     int    `query:"limit" validate:"omitempty,gte=1,lte=100" doc:"Max results (default 20)"`
	Offset    int    `query:"offset" validate:"omitempty,gte=0" doc:"Pagination offset"`
}

// SearchOutput wraps the search result for Huma.
type SearchOutput struct {
	Body service.SearchResult
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, huma.Error400BadRequest("invalid search query", err)
	}

	params := search.DefaultParams()
	params.Query = input.Query
	params.BookID = input.BookID
	params.ChapterID = input.ChapterID
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Offset = input.Offset

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		s.logger.Error("transcript search failed", "query", input.Query, "error", err)
		return nil, huma.Error500InternalServerError("search failed", err)
	}
	return &SearchOutput{Body: *result}, nil
}
