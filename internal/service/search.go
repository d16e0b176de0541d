package service

import (
	"context"

	"github.com/inkcast/inkcast-server/internal/domain"
	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/search"
	"github.com/inkcast/inkcast-server/internal/store"
)

// TranscriptSearcher executes transcript queries.
type TranscriptSearcher interface {
	Search(ctx context.Context, params search.Params) (*search.Result, error)
}

// SearchHit is an index hit enriched with the audio position to seek to.
type SearchHit struct {
	search.Hit

	// PositionMs is the chapter-relative start of the matched paragraph.
	PositionMs int64  `json:"position_ms"`
	GroupID    string `json:"group_id,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	OffsetMs   int64  `json:"offset_ms"`
}

// SearchResult is a page of enriched hits.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchService resolves transcript matches back to playable positions.
type SearchService struct {
	store    store.Store
	searcher TranscriptSearcher
	logger   *logger.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(st store.Store, searcher TranscriptSearcher, log *logger.Logger) *SearchService {
	return &SearchService{store: st, searcher: searcher, logger: log}
}

// buildArtifacts holds the per-build lookups needed to position hits.
type buildArtifacts struct {
	spansByParagraph map[int]domain.ParagraphSpan
	segmentsByIndex  map[int]domain.Segment
	groupsByID       map[string]domain.AudioGroup
}

// Search runs the query and maps every hit to the audio position where the
// matched paragraph begins. Hits whose build has been garbage collected
// since indexing are dropped from the page.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*SearchResult, error) {
	if s.searcher == nil {
		return nil, apperrors.Internal("transcript search is not configured")
	}

	res, err := s.searcher.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Query:  res.Query,
		Total:  res.Total,
		TookMs: res.TookMs,
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	// Hits on one page usually share a build, so artifact lookups are
	// memoized per build.
	artifacts := map[string]*buildArtifacts{}
	for _, hit := range res.Hits {
		arts, ok := artifacts[hit.BuildID]
		if !ok {
			arts, err = s.loadArtifacts(ctx, hit.BuildID)
			if err != nil {
				s.logger.Warn("drop stale search hit",
					"build_id", hit.BuildID, "doc_id", hit.ID, "error", err)
				artifacts[hit.BuildID] = nil
				continue
			}
			artifacts[hit.BuildID] = arts
		}
		if arts == nil {
			continue
		}

		enriched, ok := positionHit(hit, arts)
		if !ok {
			s.logger.Warn("search hit has no span",
				"build_id", hit.BuildID, "paragraph_index", hit.ParagraphIndex)
			continue
		}
		result.Hits = append(result.Hits, enriched)
	}
	return result, nil
}

// loadArtifacts fetches the spans, segments, and groups of one build.
func (s *SearchService) loadArtifacts(ctx context.Context, buildID string) (*buildArtifacts, error) {
	paragraphSpans, err := s.store.ListSpans(ctx, buildID)
	if err != nil {
		return nil, err
	}
	segments, err := s.store.ListSegments(ctx, buildID)
	if err != nil {
		return nil, err
	}
	groups, err := s.store.ListGroups(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if len(paragraphSpans) == 0 || len(segments) == 0 || len(groups) == 0 {
		return nil, apperrors.NotFound("build artifacts not found")
	}

	arts := &buildArtifacts{
		spansByParagraph: make(map[int]domain.ParagraphSpan, len(paragraphSpans)),
		segmentsByIndex:  make(map[int]domain.Segment, len(segments)),
		groupsByID:       make(map[string]domain.AudioGroup, len(groups)),
	}
	for _, sp := range paragraphSpans {
		arts.spansByParagraph[sp.ParagraphIndex] = sp
	}
	for _, seg := range segments {
		arts.segmentsByIndex[seg.SegmentIndex] = seg
	}
	for _, g := range groups {
		arts.groupsByID[g.ID] = g
	}
	return arts, nil
}

// positionHit resolves the hit's paragraph to the segment that opens it and
// converts that segment's group offset into a chapter-relative position.
func positionHit(hit search.Hit, arts *buildArtifacts) (SearchHit, bool) {
	span, ok := arts.spansByParagraph[hit.ParagraphIndex]
	if !ok {
		return SearchHit{}, false
	}
	seg, ok := arts.segmentsByIndex[span.StartSegmentIndex]
	if !ok {
		return SearchHit{}, false
	}
	group, ok := arts.groupsByID[seg.GroupID]
	if !ok {
		return SearchHit{}, false
	}

	return SearchHit{
		Hit:        hit,
		PositionMs: group.StartTimeMs + seg.OffsetInGroupMs,
		GroupID:    group.ID,
		AudioURL:   group.AudioURL,
		OffsetMs:   seg.OffsetInGroupMs,
	}, true
}
