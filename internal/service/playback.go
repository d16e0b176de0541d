package service

import (
	"context"
	"fmt"

	"github.com/inkcast/inkcast-server/internal/domain"
	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/spans"
	"github.com/inkcast/inkcast-server/internal/store"
	"github.com/inkcast/inkcast-server/internal/timeline"
)

// Manifest is everything a player needs to stream one chapter: the ordered
// audio groups plus the paragraph spans for transcript display.
type Manifest struct {
	Chapter *domain.Chapter        `json:"chapter"`
	Build   *domain.ChapterBuild   `json:"build"`
	Groups  []domain.AudioGroup    `json:"groups"`
	Spans   []domain.ParagraphSpan `json:"spans"`

	TotalDurationMs int64 `json:"total_duration_ms"`
}

// ResumeResult tells the player which artifact to fetch and where to seek
// inside it.
type ResumeResult struct {
	BuildID    string `json:"build_id"`
	GroupIndex int    `json:"group_index"`
	GroupID    string `json:"group_id"`
	AudioURL   string `json:"audio_url"`
	OffsetMs   int64  `json:"offset_ms"`
	Finished   bool   `json:"finished,omitempty"`
}

// PlaybackService serves read paths against the active build of a chapter.
type PlaybackService struct {
	store  store.Store
	cache  RenderCache
	logger *logger.Logger
}

// NewPlaybackService creates a new playback service. cache may be nil.
func NewPlaybackService(st store.Store, cache RenderCache, log *logger.Logger) *PlaybackService {
	return &PlaybackService{store: st, cache: cache, logger: log}
}

// activeBuild resolves the chapter's published build.
func (s *PlaybackService) activeBuild(ctx context.Context, chapterID string) (*domain.ChapterBuild, error) {
	build, err := s.store.GetActiveBuild(ctx, chapterID)
	if err != nil {
		return nil, mapStoreErr(err, "active build")
	}
	return build, nil
}

// GetManifest returns the playback manifest for the chapter's active build.
func (s *PlaybackService) GetManifest(ctx context.Context, chapterID string) (*Manifest, error) {
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, mapStoreErr(err, "chapter")
	}

	build, err := s.activeBuild(ctx, chapterID)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroups(ctx, build.ID)
	if err != nil {
		return nil, mapStoreErr(err, "audio groups")
	}
	paragraphSpans, err := s.store.ListSpans(ctx, build.ID)
	if err != nil {
		return nil, mapStoreErr(err, "paragraph spans")
	}

	var total int64
	for _, g := range groups {
		total += g.DurationMs
	}

	return &Manifest{
		Chapter:         chapter,
		Build:           build,
		Groups:          groups,
		Spans:           paragraphSpans,
		TotalDurationMs: total,
	}, nil
}

// Resume maps a chapter-relative position to a group and in-group offset on
// the active build. Positions past the end clamp to the final group.
func (s *PlaybackService) Resume(ctx context.Context, chapterID string, positionMs int64) (*ResumeResult, error) {
	build, err := s.activeBuild(ctx, chapterID)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroups(ctx, build.ID)
	if err != nil {
		return nil, mapStoreErr(err, "audio groups")
	}

	pos, err := timeline.Resume(groups, positionMs)
	if err != nil {
		return nil, err
	}

	result := &ResumeResult{
		BuildID:    build.ID,
		GroupIndex: pos.GroupIndex,
		GroupID:    pos.GroupID,
		OffsetMs:   pos.OffsetMs,
		Finished:   pos.Finished,
	}
	for _, g := range groups {
		if g.ID == pos.GroupID {
			result.AudioURL = g.AudioURL
			break
		}
	}
	return result, nil
}

// RenderParagraph returns the display text of one paragraph on the active
// build, consulting the render cache before joining segment text.
func (s *PlaybackService) RenderParagraph(ctx context.Context, chapterID string, paragraphIndex int) (string, error) {
	if paragraphIndex < 0 {
		return "", apperrors.Validationf("paragraph index %d is negative", paragraphIndex)
	}

	build, err := s.activeBuild(ctx, chapterID)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if text, ok, err := s.cache.GetParagraph(build.ID, build.CanonicalHash, paragraphIndex); err != nil {
			s.logger.Warn("render cache read", "build_id", build.ID, "error", err)
		} else if ok {
			return text, nil
		}
	}

	paragraphSpans, err := s.store.ListSpans(ctx, build.ID)
	if err != nil {
		return "", mapStoreErr(err, "paragraph spans")
	}
	var span *domain.ParagraphSpan
	for i := range paragraphSpans {
		if paragraphSpans[i].ParagraphIndex == paragraphIndex {
			span = &paragraphSpans[i]
			break
		}
	}
	if span == nil {
		return "", apperrors.NotFoundf("paragraph %d not found", paragraphIndex)
	}

	segments, err := s.store.ListSegments(ctx, build.ID)
	if err != nil {
		return "", mapStoreErr(err, "segments")
	}

	text := spans.RenderParagraph(*span, segments)
	if text == "" {
		return "", fmt.Errorf("paragraph %d: span references no segments", paragraphIndex)
	}

	if s.cache != nil {
		if err := s.cache.SetParagraph(build.ID, build.CanonicalHash, paragraphIndex, text); err != nil {
			s.logger.Warn("render cache write", "build_id", build.ID, "error", err)
		}
	}
	return text, nil
}
