// Package service provides the business logic layer: build orchestration,
// playback manifests, transcript search, and artifact garbage collection.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkcast/inkcast-server/internal/domain"
	"github.com/inkcast/inkcast-server/internal/encoder"
	apperrors "github.com/inkcast/inkcast-server/internal/errors"
	"github.com/inkcast/inkcast-server/internal/grouper"
	"github.com/inkcast/inkcast-server/internal/id"
	"github.com/inkcast/inkcast-server/internal/logger"
	"github.com/inkcast/inkcast-server/internal/normalize"
	"github.com/inkcast/inkcast-server/internal/search"
	"github.com/inkcast/inkcast-server/internal/segment"
	"github.com/inkcast/inkcast-server/internal/spans"
	"github.com/inkcast/inkcast-server/internal/store"
	"github.com/inkcast/inkcast-server/internal/synth"
)

// GroupEncoder encodes packed groups into published audio artifacts.
type GroupEncoder interface {
	EncodeAll(ctx context.Context, chapterID string, jobs []encoder.GroupJob) ([]domain.AudioGroup, error)
}

// TranscriptIndexer keeps the search index in sync with published builds.
type TranscriptIndexer interface {
	IndexBuild(docs []*search.Document) error
	DeleteBuild(ctx context.Context, buildID string) error
}

// RenderCache caches derived paragraph text keyed by build identity.
type RenderCache interface {
	GetParagraph(buildID, canonicalHash string, paragraphIndex int) (string, bool, error)
	SetParagraph(buildID, canonicalHash string, paragraphIndex int, text string) error
	InvalidateBuild(buildID string) error
}

// BuildOptions tunes the build pipeline.
type BuildOptions struct {
	Segments      segment.Options
	TargetGroupMs int64
	SynthWorkers  int
}

// BuildService runs the chapter build pipeline: normalize, synthesize,
// group, encode, persist, publish. Builds for one chapter are serialized;
// different chapters build concurrently.
type BuildService struct {
	store   store.Store
	synth   synth.Synthesizer
	encoder GroupEncoder
	index   TranscriptIndexer
	cache   RenderCache
	logger  *logger.Logger
	opts    BuildOptions

	mu       sync.Mutex
	chapters map[string]*sync.Mutex
}

// NewBuildService creates a new build service. index and cache may be nil;
// both are best-effort collaborators.
func NewBuildService(st store.Store, syn synth.Synthesizer, enc GroupEncoder, index TranscriptIndexer, cache RenderCache, opts BuildOptions, log *logger.Logger) *BuildService {
	if opts.TargetGroupMs <= 0 {
		opts.TargetGroupMs = grouper.DefaultTargetDurationMs
	}
	if opts.SynthWorkers <= 0 {
		opts.SynthWorkers = 4
	}
	if opts.Segments == (segment.Options{}) {
		opts.Segments = segment.DefaultOptions()
	}
	return &BuildService{
		store:    st,
		synth:    syn,
		encoder:  enc,
		index:    index,
		cache:    cache,
		logger:   log,
		opts:     opts,
		chapters: map[string]*sync.Mutex{},
	}
}

// chapterLock returns the mutex serializing builds for one chapter.
func (s *BuildService) chapterLock(chapterID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.chapters[chapterID]
	if !ok {
		mu = &sync.Mutex{}
		s.chapters[chapterID] = mu
	}
	return mu
}

// BuildChapter runs the full pipeline for one chapter source and returns the
// published build. If the source text matches an existing ready build,
// nothing is re-synthesized: the active build is returned as is, and an
// earlier ready build is reactivated as the chapter's active build.
func (s *BuildService) BuildChapter(ctx context.Context, chapterID string, source domain.ChapterSource) (*domain.ChapterBuild, error) {
	mu := s.chapterLock(chapterID)
	mu.Lock()
	defer mu.Unlock()

	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, mapStoreErr(err, "chapter")
	}

	// Segment the raw chunks. The normalization contract is checked here,
	// never assumed: a violation fails the build before any TTS spend.
	normalizer := segment.NewNormalizer(s.opts.Segments)
	segs, err := normalizer.Process(source.Chunks)
	if err != nil {
		return nil, err
	}
	if err := verifySegmentContract(segs); err != nil {
		return nil, err
	}

	canonicalText := canonicalTextOf(segs)
	hash := domain.CanonicalHash(canonicalText)

	if existing, err := s.store.FindReadyBuildByHash(ctx, chapterID, hash); err == nil {
		if existing.ID == chapter.ActiveBuildID {
			s.logger.Info("source text unchanged, reusing build",
				"chapter_id", chapterID, "build_id", existing.ID,
				"canonical_version", existing.CanonicalVersion)
			return existing, nil
		}
		// The source reverted to text an earlier ready build already
		// carries. The matched build must become what playback serves.
		return s.reactivateBuild(ctx, chapter, existing)
	}

	build := &domain.ChapterBuild{
		ID:            id.MustGenerate("bld"),
		ChapterID:     chapterID,
		CanonicalText: canonicalText,
		CanonicalHash: hash,
		Status:        domain.BuildStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateBuild(ctx, build); err != nil {
		return nil, mapStoreErr(err, "build")
	}

	s.logger.Info("build started",
		"chapter_id", chapterID, "build_id", build.ID,
		"canonical_version", build.CanonicalVersion, "segments", len(segs))

	published, err := s.runPipeline(ctx, build, segs, source)
	if err != nil {
		s.failBuild(ctx, build, err)
		return nil, err
	}
	return published, nil
}

// reactivateBuild repoints the chapter at an earlier ready build whose
// canonical text matches the resubmitted source, then rebuilds the derived
// state from the persisted rows. No synthesis or encoding happens here.
func (s *BuildService) reactivateBuild(ctx context.Context, chapter *domain.Chapter, build *domain.ChapterBuild) (*domain.ChapterBuild, error) {
	if err := s.store.ActivateBuild(ctx, chapter.ID, build.ID); err != nil {
		return nil, mapStoreErr(err, "build")
	}

	s.logger.Info("source text reverted, reactivated earlier build",
		"chapter_id", chapter.ID, "build_id", build.ID,
		"canonical_version", build.CanonicalVersion,
		"superseded_build_id", chapter.ActiveBuildID)

	segs, err := s.store.ListSegments(ctx, build.ID)
	if err != nil {
		return nil, mapStoreErr(err, "segments")
	}
	paragraphSpans, err := s.store.ListSpans(ctx, build.ID)
	if err != nil {
		return nil, mapStoreErr(err, "spans")
	}
	s.syncDerived(ctx, build, segs, paragraphSpans, chapter.ActiveBuildID)

	return build, nil
}

// VerifyBuild re-runs span coverage validation against a build's persisted
// rows. It is a read-only audit for catching mapping corruption after the
// fact, independent of the inline check at build time.
func (s *BuildService) VerifyBuild(ctx context.Context, buildID string) (*spans.CoverageReport, error) {
	if _, err := s.store.GetBuild(ctx, buildID); err != nil {
		return nil, mapStoreErr(err, "build")
	}
	segs, err := s.store.ListSegments(ctx, buildID)
	if err != nil {
		return nil, mapStoreErr(err, "segments")
	}
	paragraphSpans, err := s.store.ListSpans(ctx, buildID)
	if err != nil {
		return nil, mapStoreErr(err, "spans")
	}
	return spans.ValidateCoverage(paragraphSpans, len(segs)), nil
}

// runPipeline executes everything between build creation and publication.
func (s *BuildService) runPipeline(ctx context.Context, build *domain.ChapterBuild, segs []domain.Segment, source domain.ChapterSource) (*domain.ChapterBuild, error) {
	for i := range segs {
		segs[i].BuildID = build.ID
	}

	clips, err := s.synthesizeAll(ctx, segs)
	if err != nil {
		return nil, err
	}

	packed, err := grouper.Pack(segs, s.opts.TargetGroupMs)
	if err != nil {
		return nil, err
	}
	if err := grouper.Validate(packed); err != nil {
		return nil, err
	}

	groups := make([]domain.AudioGroup, len(packed))
	jobs := make([]encoder.GroupJob, len(packed))
	var finalSegs []domain.Segment
	for i, g := range packed {
		groupID := id.MustGenerate("grp")
		groups[i] = domain.AudioGroup{
			ID:                groupID,
			BuildID:           build.ID,
			GroupIndex:        g.GroupIndex,
			DurationMs:        g.DurationMs,
			StartTimeMs:       g.StartTimeMs,
			StartSegmentIndex: g.StartSegmentIndex,
			EndSegmentIndex:   g.EndSegmentIndex,
		}

		job := encoder.GroupJob{Group: groups[i]}
		for _, seg := range g.Segments {
			seg.GroupID = groupID
			finalSegs = append(finalSegs, seg)
			job.ClipPaths = append(job.ClipPaths, clips[seg.SegmentIndex].Path)
		}
		jobs[i] = job
	}

	encoded, err := s.encoder.EncodeAll(ctx, build.ChapterID, jobs)
	if err != nil {
		return nil, err
	}

	paragraphSpans, err := spans.Map(source.Paragraphs, finalSegs)
	if err != nil {
		return nil, err
	}
	for i := range paragraphSpans {
		paragraphSpans[i].ID = id.MustGenerate("span")
		paragraphSpans[i].BuildID = build.ID
	}
	if report := spans.ValidateCoverage(paragraphSpans, len(finalSegs)); !report.Valid() {
		return nil, report.Err()
	}

	if err := s.store.SaveBuildArtifacts(ctx, build.ID, finalSegs, encoded, paragraphSpans); err != nil {
		return nil, mapStoreErr(err, "build artifacts")
	}

	prevBuildID := ""
	if prev, err := s.store.GetActiveBuild(ctx, build.ChapterID); err == nil {
		prevBuildID = prev.ID
	}

	if n, err := s.store.AbandonStaleBuilds(ctx, build.ChapterID, build.ID); err != nil {
		return nil, mapStoreErr(err, "stale builds")
	} else if n > 0 {
		s.logger.Info("abandoned superseded builds", "chapter_id", build.ChapterID, "count", n)
	}

	if err := s.store.PublishBuild(ctx, build.ChapterID, build.ID); err != nil {
		return nil, mapStoreErr(err, "build")
	}

	published, err := s.store.GetBuild(ctx, build.ID)
	if err != nil {
		return nil, mapStoreErr(err, "build")
	}

	s.logger.Info("build published",
		"chapter_id", build.ChapterID, "build_id", build.ID,
		"canonical_version", published.CanonicalVersion,
		"groups", len(encoded), "spans", len(paragraphSpans))

	s.syncDerived(ctx, published, finalSegs, paragraphSpans, prevBuildID)

	return published, nil
}

// syncDerived refreshes the search index and render cache after publication.
// Both are rebuildable from the store, so failures only log.
func (s *BuildService) syncDerived(ctx context.Context, build *domain.ChapterBuild, segs []domain.Segment, paragraphSpans []domain.ParagraphSpan, prevBuildID string) {
	if prevBuildID != "" {
		if s.cache != nil {
			if err := s.cache.InvalidateBuild(prevBuildID); err != nil {
				s.logger.Warn("invalidate render cache", "build_id", prevBuildID, "error", err)
			}
		}
		if s.index != nil {
			if err := s.index.DeleteBuild(ctx, prevBuildID); err != nil {
				s.logger.Warn("deindex superseded build", "build_id", prevBuildID, "error", err)
			}
		}
	}

	if s.index == nil {
		return
	}

	chapter, err := s.store.GetChapter(ctx, build.ChapterID)
	if err != nil {
		s.logger.Warn("index transcripts: load chapter", "chapter_id", build.ChapterID, "error", err)
		return
	}

	docs := make([]*search.Document, len(paragraphSpans))
	for i, span := range paragraphSpans {
		docs[i] = &search.Document{
			ID:             search.DocumentID(build.ID, span.ParagraphIndex),
			BookID:         chapter.BookID,
			ChapterID:      chapter.ID,
			BuildID:        build.ID,
			ParagraphIndex: span.ParagraphIndex,
			Text:           spans.RenderParagraph(span, segs),
		}
	}
	if err := s.index.IndexBuild(docs); err != nil {
		s.logger.Warn("index transcripts", "build_id", build.ID, "error", err)
	}
}

// synthesizeAll fans segments out across TTS workers and records the
// measured duration on each segment. Results land by index, so completion
// order does not matter.
func (s *BuildService) synthesizeAll(ctx context.Context, segs []domain.Segment) ([]synth.Clip, error) {
	clips := make([]synth.Clip, len(segs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SynthWorkers)

	for i := range segs {
		g.Go(func() error {
			clip, err := s.synth.Synthesize(gctx, segs[i].TextNormalized)
			if err != nil {
				return fmt.Errorf("segment %d: %w", segs[i].SegmentIndex, err)
			}
			clips[i] = clip
			segs[i].DurationMs = clip.DurationMs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// failBuild records the failure reason. The chapter's active pointer still
// references the previous good build.
func (s *BuildService) failBuild(ctx context.Context, build *domain.ChapterBuild, cause error) {
	s.logger.Error("build failed",
		"chapter_id", build.ChapterID, "build_id", build.ID, "error", cause)

	// The failure must be recorded even when the pipeline died from
	// context cancellation.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.MarkBuildFailed(ctx, build.ID, cause.Error()); err != nil {
		s.logger.Error("mark build failed", "build_id", build.ID, "error", err)
	}
}

// verifySegmentContract rejects any segment whose stored normalized text is
// not the normalization of its display text.
func verifySegmentContract(segs []domain.Segment) error {
	for _, seg := range segs {
		if !normalize.Equal(seg.Text, seg.TextNormalized) {
			return apperrors.Normalizationf(
				"segment %d: text_normalized does not match normalize(text)", seg.SegmentIndex)
		}
	}
	return nil
}

// canonicalTextOf joins the segments' normalized text in index order.
func canonicalTextOf(segs []domain.Segment) string {
	parts := make([]string, len(segs))
	for i, seg := range segs {
		parts[i] = seg.TextNormalized
	}
	return strings.Join(parts, " ")
}

// mapStoreErr converts store sentinel errors into domain errors.
func mapStoreErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound(what + " not found")
	case errors.Is(err, store.ErrAlreadyExists):
		return apperrors.AlreadyExists(what + " already exists")
	case errors.Is(err, store.ErrBuildImmutable):
		return apperrors.Conflict(what + " is immutable")
	case errors.Is(err, store.ErrInvalidInput):
		return apperrors.Validation(err.Error())
	default:
		return apperrors.Internal("store failure").WithCause(err)
	}
}
