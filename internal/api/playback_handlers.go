package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkcast/inkcast-server/internal/service"
)

func (s *Server) registerPlaybackRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getManifest",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}/manifest",
		Summary:     "Get playback manifest",
		Description: "Audio groups and paragraph spans for the chapter's active build",
		Tags:        []string{"Playback"},
	}, s.handleGetManifest)

	huma.Register(s.api, huma.Operation{
		OperationID: "resume",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}/resume",
		Summary:     "Resolve resume position",
		Description: "Maps a chapter-relative position to a group and in-group offset. Out-of-range positions clamp.",
		Tags:        []string{"Playback"},
	}, s.handleResume)

	huma.Register(s.api, huma.Operation{
		OperationID: "getParagraph",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}/paragraphs/{index}",
		Summary:     "Get paragraph text",
		Tags:        []string{"Playback"},
	}, s.handleGetParagraph)
}

// === DTOs ===

// ManifestOutput wraps the playback manifest for Huma.
type ManifestOutput struct {
	Body service.Manifest
}

// ResumeInput carries the resume query.
type ResumeInput struct {
	ID         string `path:"id" doc:"Chapter ID"`
	PositionMs int64  `query:"position_ms" doc:"Chapter-relative position in milliseconds"`
}

// ResumeOutput wraps the resume result for Huma.
type ResumeOutput struct {
	Body service.ResumeResult
}

// ParagraphInput addresses one paragraph of a chapter.
type ParagraphInput struct {
	ID    string `path:"id" doc:"Chapter ID"`
	Index int    `path:"index" minimum:"0" doc:"Paragraph index"`
}

// ParagraphOutput wraps paragraph text for Huma.
type ParagraphOutput struct {
	Body struct {
		ParagraphIndex int    `json:"paragraph_index"`
		Text           string `json:"text"`
	}
}

// === Handlers ===

func (s *Server) handleGetManifest(ctx context.Context, input *ChapterIDInput) (*ManifestOutput, error) {
	manifest, err := s.services.Playback.GetManifest(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("no active build", err)
	}
	return &ManifestOutput{Body: *manifest}, nil
}

func (s *Server) handleResume(ctx context.Context, input *ResumeInput) (*ResumeOutput, error) {
	result, err := s.services.Playback.Resume(ctx, input.ID, input.PositionMs)
	if err != nil {
		return nil, huma.Error404NotFound("no active build", err)
	}
	return &ResumeOutput{Body: *result}, nil
}

func (s *Server) handleGetParagraph(ctx context.Context, input *ParagraphInput) (*ParagraphOutput, error) {
	text, err := s.services.Playback.RenderParagraph(ctx, input.ID, input.Index)
	if err != nil {
		return nil, huma.Error404NotFound("paragraph not found", err)
	}

	out := &ParagraphOutput{}
	out.Body.ParagraphIndex = input.Index
	out.Body.Text = text
	return out, nil
}
